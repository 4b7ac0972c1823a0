package code

import "testing"

func TestMake(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []int
		expected []byte
	}{
		{OpConstant, []int{65534}, []byte{byte(OpConstant), 255, 254}},
		{OpAdd, []int{}, []byte{byte(OpAdd)}},
		{OpGetLocal, []int{1}, []byte{byte(OpGetLocal), 0, 1}},
		{OpCall, []int{2}, []byte{byte(OpCall), 2}},
		{OpAttribute, []int{65535}, []byte{byte(OpAttribute), 255, 255}},
	}

	for _, tt := range tests {
		instruction := Make(tt.op, tt.operands...)

		if len(instruction) != len(tt.expected) {
			t.Fatalf("instruction has wrong length. want=%d, got=%d", len(tt.expected), len(instruction))
		}

		for i, b := range tt.expected {
			if instruction[i] != b {
				t.Errorf("byte %d wrong. want=%d, got=%d", i, b, instruction[i])
			}
		}
	}
}

func TestInstructionsString(t *testing.T) {
	instructions := Instructions{}
	instructions = append(instructions, Make(OpAdd)...)
	instructions = append(instructions, Make(OpGetLocal, 1)...)
	instructions = append(instructions, Make(OpConstant, 2)...)

	expected := "0000 OpAdd\n0001 OpGetLocal 1\n0004 OpConstant 2\n"

	if got := instructions.String(); got != expected {
		t.Errorf("instructions wrongly formatted.\nwant=%q\ngot=%q", expected, got)
	}
}

func TestReadOperands(t *testing.T) {
	tests := []struct {
		op        Opcode
		operands  []int
		bytesRead int
	}{
		{OpConstant, []int{65535}, 2},
		{OpGetLocal, []int{255}, 2},
		{OpCall, []int{3}, 1},
		{OpAttribute, []int{1}, 2},
	}

	for _, tt := range tests {
		instruction := Make(tt.op, tt.operands...)

		def, err := Lookup(byte(tt.op))
		if err != nil {
			t.Fatalf("definition not found: %s", err)
		}

		operandsRead, n := ReadOperands(def, instruction[1:])
		if n != tt.bytesRead {
			t.Fatalf("n wrong. want=%d, got=%d", tt.bytesRead, n)
		}

		for i, want := range tt.operands {
			if operandsRead[i] != want {
				t.Errorf("operand wrong. want=%d, got=%d", want, operandsRead[i])
			}
		}
	}
}

func TestLookupUnknownOpcode(t *testing.T) {
	if _, err := Lookup(255); err == nil {
		t.Errorf("expected an error for an undefined opcode")
	}
}
