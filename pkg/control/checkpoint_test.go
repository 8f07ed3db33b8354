package control

import "testing"

func TestCheckpointOrder(t *testing.T) {
	want := []Checkpoint{
		CheckpointA, CheckpointB, CheckpointC, CheckpointD,
		CheckpointE, CheckpointF, CheckpointDone,
	}
	cp := CheckpointStart
	for _, next := range want {
		cp = cp.Next()
		if cp != next {
			t.Fatalf("Next() = %v, want %v", cp, next)
		}
	}
	if !cp.Terminal() {
		t.Error("final checkpoint should be terminal")
	}
	if cp.Next() != CheckpointDone {
		t.Error("Done must stay Done")
	}
}

func TestCheckpointNames(t *testing.T) {
	cases := map[Checkpoint]string{
		CheckpointStart: "start",
		CheckpointA:     "A",
		CheckpointD:     "D",
		CheckpointDone:  "done",
		Checkpoint(42):  "unknown",
	}
	for cp, want := range cases {
		if got := cp.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(cp), got, want)
		}
	}
}

func TestAwardTable(t *testing.T) {
	if awards[CheckpointA].points != 0 {
		t.Error("arming crossing must not score")
	}
	if a := awards[CheckpointB]; a.points != 5 || a.l1Bonus != 10 {
		t.Errorf("B award = %+v", a)
	}
	for _, cp := range []Checkpoint{CheckpointC, CheckpointD, CheckpointE, CheckpointF} {
		if a := awards[cp]; a.points != 5 || !a.toggleLED {
			t.Errorf("%v award = %+v", cp, a)
		}
	}
	if a := awards[CheckpointDone]; a.points != 5 || !a.finish {
		t.Errorf("finish award = %+v", a)
	}
}
