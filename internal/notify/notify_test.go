package notify

import (
	"testing"
)

func TestMultiForwardsInOrder(t *testing.T) {
	var order []string
	first := Func(func(k Kind, m string) { order = append(order, "first:"+m) })
	second := &Recorder{}

	Multi{first, second}.Notify(KindSuccess, "saved")

	if len(order) != 1 || order[0] != "first:saved" {
		t.Errorf("first notifier got %v", order)
	}
	got := second.All()
	if len(got) != 1 || got[0] != (Notification{Kind: KindSuccess, Message: "saved"}) {
		t.Errorf("recorder got %v", got)
	}
}

func TestRecorderReset(t *testing.T) {
	r := &Recorder{}
	r.Notify(KindError, "boom")
	r.Reset()
	if n := len(r.All()); n != 0 {
		t.Errorf("len = %d after Reset, want 0", n)
	}
}
