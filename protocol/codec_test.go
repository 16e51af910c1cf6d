package protocol

import (
	"testing"

	"geoarena/geo"
)

func TestCodecsCarryOptionalHealth(t *testing.T) {
	for _, c := range []Codec{JSON, Msgpack} {
		b, err := c.Encode(MsgPlayerHit, HitUpdate{ID: "p1", Score: 5, Health: IntPtr(0)})
		if err != nil {
			t.Fatalf("%s encode: %v", c.Name(), err)
		}
		env, err := c.DecodeEnvelope(b)
		if err != nil {
			t.Fatalf("%s decode envelope: %v", c.Name(), err)
		}
		if env.T != MsgPlayerHit {
			t.Fatalf("%s: type = %q", c.Name(), env.T)
		}
		up, err := DecodePayload[HitUpdate](c, env)
		if err != nil {
			t.Fatalf("%s decode payload: %v", c.Name(), err)
		}
		if up.Health == nil || *up.Health != 0 {
			t.Fatalf("%s: expected explicit zero health, got %v", c.Name(), up.Health)
		}

		b, _ = c.Encode(MsgPlayerHit, HitUpdate{ID: "p2", Score: 10})
		env, _ = c.DecodeEnvelope(b)
		up, err = DecodePayload[HitUpdate](c, env)
		if err != nil {
			t.Fatalf("%s decode payload: %v", c.Name(), err)
		}
		if up.Health != nil {
			t.Fatalf("%s: expected health to be omitted, got %d", c.Name(), *up.Health)
		}
	}
}

func TestCodecStringPayload(t *testing.T) {
	for _, c := range []Codec{JSON, Msgpack} {
		b, err := c.Encode(MsgPlayerLeft, "abc")
		if err != nil {
			t.Fatalf("%s encode: %v", c.Name(), err)
		}
		env, _ := c.DecodeEnvelope(b)
		id, err := DecodePayload[string](c, env)
		if err != nil || id != "abc" {
			t.Fatalf("%s: got %q, %v", c.Name(), id, err)
		}
	}
}

func TestJSONWireShape(t *testing.T) {
	b, err := JSON.Encode(MsgMove, geo.LatLng{Lat: 1.5, Lng: -2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"t":"playerMove","p":{"lat":1.5,"lng":-2}}`
	if string(b) != want {
		t.Fatalf("wire = %s, want %s", b, want)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, c := range []Codec{JSON, Msgpack} {
		if _, err := c.DecodeEnvelope(nil); err == nil {
			t.Fatalf("%s: expected error for empty frame", c.Name())
		}
		if _, err := c.DecodeEnvelope([]byte("\xff\x00not-a-frame")); err == nil {
			t.Fatalf("%s: expected error for garbage frame", c.Name())
		}
	}
	if _, err := DecodePayload[Join](JSON, Envelope{T: MsgJoin}); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestEncodeRejectsMissingParts(t *testing.T) {
	if _, err := JSON.Encode("", Welcome{}); err == nil {
		t.Fatalf("expected error for empty type")
	}
	if _, err := Msgpack.Encode(MsgWelcome, nil); err == nil {
		t.Fatalf("expected error for nil payload")
	}
}

func TestCodecByName(t *testing.T) {
	if CodecByName("MSGPACK") != Msgpack {
		t.Fatalf("expected msgpack codec")
	}
	if CodecByName("") != JSON || CodecByName("xml") != JSON {
		t.Fatalf("expected json fallback")
	}
}
