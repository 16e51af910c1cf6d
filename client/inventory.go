package client

import "github.com/google/uuid"

// InventorySlots 背包固定容量
const InventorySlots = 5

type ItemKind string

const (
	ItemWeapon  ItemKind = "weapon"
	ItemHealth  ItemKind = "health"
	ItemAmmo    ItemKind = "ammo"
	ItemPowerup ItemKind = "powerup"
)

// Item 背包中的一项；武器物品自带武器状态，丢弃后弹药不变
type Item struct {
	ID       string
	Name     string
	Kind     ItemKind
	Quantity int
	Weapon   *Weapon
}

func (it Item) clone() Item {
	if it.Weapon != nil {
		w := *it.Weapon
		it.Weapon = &w
	}
	return it
}

// WeaponItem 把一把新的 t 型武器包装为物品
func WeaponItem(t WeaponType) Item {
	w, _ := NewWeapon(t)
	return Item{
		ID:       string(t) + "_" + uuid.NewString(),
		Name:     w.Name,
		Kind:     ItemWeapon,
		Quantity: 1,
		Weapon:   &w,
	}
}

// Inventory 至多 InventorySlots 个物品的有序列表，按物品 id 记录当前装备的武器
type Inventory struct {
	items    []Item
	equipped string
}

func (inv *Inventory) Len() int   { return len(inv.items) }
func (inv *Inventory) Full() bool { return len(inv.items) >= InventorySlots }

// Items 按槽位顺序返回深拷贝
func (inv *Inventory) Items() []Item {
	out := make([]Item, len(inv.items))
	for i, it := range inv.items {
		out[i] = it.clone()
	}
	return out
}

// Add 追加物品并返回槽位
func (inv *Inventory) Add(it Item) (int, error) {
	if inv.Full() {
		return -1, ErrInventoryFull
	}
	inv.items = append(inv.items, it)
	return len(inv.items) - 1, nil
}

// Remove 取出槽位中的物品；取出当前武器后变为未装备
func (inv *Inventory) Remove(slot int) (Item, error) {
	if slot < 0 || slot >= len(inv.items) {
		return Item{}, ErrEmptySlot
	}
	it := inv.items[slot]
	inv.items = append(inv.items[:slot], inv.items[slot+1:]...)
	if it.ID == inv.equipped {
		inv.equipped = ""
	}
	return it, nil
}

// Equip 装备槽位中的武器
func (inv *Inventory) Equip(slot int) error {
	if slot < 0 || slot >= len(inv.items) {
		return ErrEmptySlot
	}
	it := inv.items[slot]
	if it.Kind != ItemWeapon || it.Weapon == nil {
		return ErrNotWeapon
	}
	inv.equipped = it.ID
	return nil
}

// Weapon 返回当前武器的实时状态，未装备时为 nil
func (inv *Inventory) Weapon() *Weapon {
	if inv.equipped == "" {
		return nil
	}
	for i := range inv.items {
		if inv.items[i].ID == inv.equipped {
			return inv.items[i].Weapon
		}
	}
	return nil
}

func (inv *Inventory) EquippedID() string { return inv.equipped }

func (inv *Inventory) Clear() {
	inv.items = nil
	inv.equipped = ""
}
