package client

import "errors"

var (
	ErrNoWeapon      = errors.New("no weapon equipped")
	ErrNoAmmo        = errors.New("out of ammo")
	ErrDead          = errors.New("player is dead")
	ErrCoolingDown   = errors.New("weapon fire rate not elapsed")
	ErrReloading     = errors.New("weapon is reloading")
	ErrFullAmmo      = errors.New("weapon already full")
	ErrEmptySlot     = errors.New("inventory slot is empty")
	ErrOutOfRange    = errors.New("item out of reach")
	ErrInventoryFull = errors.New("inventory full")
	ErrUnknownItem   = errors.New("unknown dropped item")
	ErrNotWeapon     = errors.New("item is not a weapon")
	ErrDisconnected  = errors.New("connection closed")
)
