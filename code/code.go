// Package code provides bytecode instruction definitions and utilities for
// the compiler and virtual machine.
//
// It defines the bytecode instruction set the compiler emits and the
// virtual machine executes: opcode constants, instruction encoding and
// decoding, and disassembly for debug output. It depends on nothing else
// in this module, so both package ast (which names opcodes when compiling
// a node) and package compiler/vm/native (which build and run
// instructions) can import it without a cycle.
package code

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Instructions is a slice of bytes representing a sequence of instructions.
type Instructions []byte

// Opcode represents a single bytecode instruction used by the compiler and virtual machine.
type Opcode byte

// Bytecode instruction opcodes. One opcode per logical operation; operand
// ordering always pops in the order documented and pushes the result.
const (
	// OpConstant pushes a constant from the constant pool onto the stack.
	//
	// Operands: [constant_index:2]
	OpConstant Opcode = iota

	OpPop // Stack: [value] -> []

	OpAdd // Stack: [a, b] -> [a + b]
	OpSub // Stack: [a, b] -> [a - b]
	OpMul // Stack: [a, b] -> [a * b]
	OpDiv // Stack: [a, b] -> [a / b]
	OpMod // Stack: [a, b] -> [a % b]

	OpTrue  // Stack: [] -> [true]
	OpFalse // Stack: [] -> [false]
	OpNull  // Stack: [] -> [null]

	OpEqual        // Stack: [a, b] -> [a == b]
	OpNotEqual     // Stack: [a, b] -> [a != b]
	OpGreaterThan  // Stack: [a, b] -> [a > b]
	OpGreaterEqual // Stack: [a, b] -> [a >= b]
	OpLessThan     // Stack: [a, b] -> [a < b]
	OpLessEqual    // Stack: [a, b] -> [a <= b]

	OpMinus // Stack: [v] -> [-v]
	OpBang  // Stack: [v] -> [!v]

	// OpJump unconditionally jumps to the specified instruction position.
	//
	// Operands: [position:2]
	OpJump

	// OpJumpNotTruthy pops a value and jumps to position if it is falsy.
	//
	// Operands: [position:2]
	//
	// Stack: [value] -> []
	OpJumpNotTruthy

	// OpGetGlobal retrieves a global variable. The operand is a constant
	// pool index holding the variable's mangled name.
	//
	// Operands: [name_constant_index:2]
	OpGetGlobal

	// OpSetGlobal pops a value into the named global variable. The operand
	// is a constant pool index holding the variable's mangled name.
	//
	// Operands: [name_constant_index:2]
	//
	// Stack: [value] -> []
	OpSetGlobal

	// OpGetLocal retrieves a local variable. The operand is a constant
	// pool index holding the variable's mangled name.
	//
	// Operands: [name_constant_index:2]
	OpGetLocal

	// OpSetLocal pops a value into the named local variable. The operand
	// is a constant pool index holding the variable's mangled name.
	//
	// Operands: [name_constant_index:2]
	//
	// Stack: [value] -> []
	OpSetLocal

	// OpGetLibrary retrieves a resolved library function. The operand is
	// a constant pool index holding the library member's name.
	//
	// Operands: [name_constant_index:2]
	OpGetLibrary

	// OpArray pops count elements and pushes an array built from them.
	//
	// Operands: [count:2]
	//
	// Stack: [e1, ..., eN] -> [array]
	OpArray

	// OpMap pops count key/value pairs and pushes a map built from them.
	//
	// Operands: [pair_count:2]
	//
	// Stack: [k1, v1, ..., kN, vN] -> [map]
	OpMap

	OpIndex // Stack: [collection, index] -> [collection[index]]

	// OpSetIndex stores value at collection[index] and pushes value back,
	// so an index assignment used as an expression (not just a statement)
	// yields the assigned value, matching OpSetGlobal/OpSetLocal's
	// assignment-is-an-expression behavior.
	//
	// Stack: [collection, index, value] -> [value]
	OpSetIndex

	// OpSlice pops a collection and three slice bounds (begin, end, skip)
	// and pushes the resulting slice. Any bound may be the null value,
	// meaning "omitted".
	//
	// Stack: [collection, begin, end, skip] -> [slice]
	OpSlice

	// OpAttribute pops a value and pushes the named attribute/property.
	//
	// Operands: [name_constant_index:2]
	//
	// Stack: [value] -> [value.name]
	OpAttribute

	// OpSetAttribute sets the named attribute on value to assigned and
	// pushes assigned back, for the same expression-value reason as
	// OpSetIndex.
	//
	// Operands: [name_constant_index:2]
	//
	// Stack: [value, assigned] -> [assigned]
	OpSetAttribute

	// OpCall calls a function with the given argument count.
	//
	// Operands: [num_args:1]
	//
	// Stack: [func, arg1, ..., argN] -> [result]
	OpCall

	OpReturnValue // Stack: [value] -> [], returns value from the current function
	OpReturn      // returns implicit null from the current function

	// OpPrint pops count values and writes their string forms, in order,
	// to the execution context's output. Error values print nothing.
	//
	// Operands: [count:1]
	OpPrint

	// OpCast pops a value and pushes it cast to the target type tag.
	//
	// Operands: [type_tag:1]
	OpCast

	// OpIterInit pops a collection and pushes an iterator over it.
	//
	// Stack: [collection] -> [iterator]
	OpIterInit

	// OpIterNext advances the iterator on top of the stack. If exhausted,
	// it pops the iterator and jumps to position; otherwise it pushes the
	// next element above the (retained) iterator.
	//
	// Operands: [position:2]
	//
	// Stack: [iterator] -> [iterator, element] or [] (jump taken)
	OpIterNext

	OpDup // Stack: [v] -> [v, v]
)

// Definition represents an instruction definition with its name and operand widths.
type Definition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*Definition{
	OpConstant:     {"OpConstant", []int{2}},
	OpPop:          {"OpPop", []int{}},
	OpAdd:          {"OpAdd", []int{}},
	OpSub:          {"OpSub", []int{}},
	OpMul:          {"OpMul", []int{}},
	OpDiv:          {"OpDiv", []int{}},
	OpMod:          {"OpMod", []int{}},
	OpTrue:         {"OpTrue", []int{}},
	OpFalse:        {"OpFalse", []int{}},
	OpNull:         {"OpNull", []int{}},
	OpEqual:        {"OpEqual", []int{}},
	OpNotEqual:     {"OpNotEqual", []int{}},
	OpGreaterThan:  {"OpGreaterThan", []int{}},
	OpGreaterEqual: {"OpGreaterEqual", []int{}},
	OpLessThan:     {"OpLessThan", []int{}},
	OpLessEqual:    {"OpLessEqual", []int{}},
	OpMinus:        {"OpMinus", []int{}},
	OpBang:         {"OpBang", []int{}},
	OpJump:         {"OpJump", []int{2}},
	OpJumpNotTruthy: {"OpJumpNotTruthy", []int{2}},
	OpGetGlobal:    {"OpGetGlobal", []int{2}},
	OpSetGlobal:    {"OpSetGlobal", []int{2}},
	OpGetLocal:     {"OpGetLocal", []int{2}},
	OpSetLocal:     {"OpSetLocal", []int{2}},
	OpGetLibrary:   {"OpGetLibrary", []int{2}},
	OpArray:        {"OpArray", []int{2}},
	OpMap:          {"OpMap", []int{2}},
	OpIndex:        {"OpIndex", []int{}},
	OpSetIndex:     {"OpSetIndex", []int{}},
	OpSlice:        {"OpSlice", []int{}},
	OpAttribute:    {"OpAttribute", []int{2}},
	OpSetAttribute: {"OpSetAttribute", []int{2}},
	OpCall:         {"OpCall", []int{1}},
	OpReturnValue:  {"OpReturnValue", []int{}},
	OpReturn:       {"OpReturn", []int{}},
	OpPrint:        {"OpPrint", []int{1}},
	OpCast:         {"OpCast", []int{1}},
	OpIterInit:     {"OpIterInit", []int{}},
	OpIterNext:     {"OpIterNext", []int{2}},
	OpDup:          {"OpDup", []int{}},
}

// Lookup returns the [Definition] for the given [Opcode].
func Lookup(op byte) (*Definition, error) {
	def, ok := definitions[Opcode(op)]
	if !ok {
		return nil, fmt.Errorf("opcode %d undefined", op)
	}
	return def, nil
}

// Make creates a byte slice representing an instruction using the provided opcode and operands.
func Make(op Opcode, operands ...int) []byte {
	def, ok := definitions[op]
	if !ok {
		return []byte{}
	}
	instructionLen := 1
	for _, w := range def.OperandWidths {
		instructionLen += w
	}
	instruction := make([]byte, instructionLen)
	instruction[0] = byte(op)
	offset := 1
	for i, operand := range operands {
		width := def.OperandWidths[i]
		switch width {
		case 1:
			instruction[offset] = byte(operand)
		case 2:
			binary.BigEndian.PutUint16(instruction[offset:], uint16(operand))
		}
		offset += width
	}
	return instruction
}

// String provides a human-readable string representation of the [Instructions], formatted with opcodes and operands.
func (ins Instructions) String() string {
	var out strings.Builder

	i := 0
	for i < len(ins) {
		def, err := Lookup(ins[i])
		if err != nil {
			_, _ = fmt.Fprintf(&out, "ERROR: %s\n", err)
			i++
			continue
		}
		operands, read := ReadOperands(def, ins[i+1:])
		_, _ = fmt.Fprintf(&out, "%04d %s\n", i, ins.fmtInstruction(def, operands))
		i += read + 1
	}

	return out.String()
}

// fmtInstruction formats an instruction with its operands into a human-readable string representation.
func (ins Instructions) fmtInstruction(def *Definition, operands []int) string {
	operandCount := len(def.OperandWidths)

	if len(operands) != operandCount {
		return fmt.Sprintf("ERROR: operand len %d does not match defined %d\n", len(operands), operandCount)
	}

	switch operandCount {
	case 0:
		return def.Name
	case 1:
		return fmt.Sprintf("%s %d", def.Name, operands[0])
	case 2:
		return fmt.Sprintf("%s %d %d", def.Name, operands[0], operands[1])
	}
	return fmt.Sprintf("ERROR: unhandled operandCount for %s\n", def.Name)
}

// ReadOperands decodes operands from the specified instructions based
// on the definition and returns them with the total bytes read.
func ReadOperands(def *Definition, ins Instructions) ([]int, int) {
	operands := make([]int, len(def.OperandWidths))
	offset := 0

	for i, width := range def.OperandWidths {
		switch width {
		case 1:
			operands[i] = int(ReadUint8(ins[offset:]))
		case 2:
			operands[i] = int(ReadUint16(ins[offset:]))
		}
		offset += width
	}
	return operands, offset
}

// ReadUint16 decodes the first two bytes of the provided [Instructions] as uint16 in big-endian format.
func ReadUint16(ins Instructions) uint16 {
	return binary.BigEndian.Uint16(ins)
}

// ReadUint8 extracts the first byte from the provided [Instructions] slice and returns it as uint8.
func ReadUint8(ins Instructions) uint8 { return ins[0] }
