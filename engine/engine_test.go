package engine

import "testing"

func TestStatusString(t *testing.T) {
	cases := []struct {
		st   Status
		want string
	}{
		{StatusOK, "ok"},
		{StatusBadHandle, "bad_handle"},
		{StatusNoSuchModule, "no_such_module"},
		{StatusBadBinding, "bad_binding"},
		{StatusOutOfRange, "out_of_range"},
		{StatusUnsupported, "unsupported"},
		{StatusInternal, "internal"},
		{Status(42), "unknown"},
	}
	for _, c := range cases {
		if got := c.st.String(); got != c.want {
			t.Errorf("Status(%d).String() = %q, want %q", c.st, got, c.want)
		}
	}
	if !StatusOK.OK() || StatusInternal.OK() {
		t.Fatal("OK() misclassified a status")
	}
}

func TestRoleAccess(t *testing.T) {
	if !RoleInput.Readable() || RoleInput.Writable() {
		t.Fatal("input role access wrong")
	}
	if RoleOutput.Readable() || !RoleOutput.Writable() {
		t.Fatal("output role access wrong")
	}
	if !RoleInOut.Readable() || !RoleInOut.Writable() {
		t.Fatal("inout role access wrong")
	}
}

func TestModuleInfoBuffer(t *testing.T) {
	info := ModuleInfo{
		Name: "alpha001",
		Buffers: []BufferDesc{
			{Name: "close", Role: RoleInput, Lanes: 8, ElemWidth: 4},
			{Name: "out", Role: RoleOutput, Lanes: 8, ElemWidth: 4},
		},
	}

	d, ok := info.Buffer("out")
	if !ok || d.Role != RoleOutput {
		t.Fatalf("Buffer(out) = %+v, %v", d, ok)
	}
	if _, ok := info.Buffer("volume"); ok {
		t.Fatal("found a buffer that is not in the contract")
	}
}
