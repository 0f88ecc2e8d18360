// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

// A minimal PostScript-flavoured interpreter, sufficient for content
// streams and ToUnicode CMaps.

package zpdf

import (
	"io"

	"github.com/sassoftware/viya-zpdf/logger"
)

// A Stack represents a stack of values.
type Stack struct {
	stack []Value
}

// Len returns the number of values on the stack.
func (stk *Stack) Len() int {
	return len(stk.stack)
}

// Push pushes a value onto the stack.
func (stk *Stack) Push(v Value) {
	stk.stack = append(stk.stack, v)
}

// Pop removes and returns the top value from the stack.
// Popping an empty stack returns a null Value.
func (stk *Stack) Pop() Value {
	n := len(stk.stack)
	if n == 0 {
		return Value{}
	}
	v := stk.stack[n-1]
	stk.stack[n-1] = Value{}
	stk.stack = stk.stack[:n-1]
	return v
}

func newDict() Value {
	return Value{data: make(dict)}
}

// Interpret interprets the data in the stream strm as a PostScript
// program, pushing operands onto a stack and calling do(stk, op) for
// every operator op. The callback pops its own operands.
//
// Interpret handles the language-level operators (dict manipulation,
// def, pop) itself so that CMap programs run without the callback
// having to know PostScript.
func Interpret(strm Value, do func(stk *Stack, op string)) {
	InterpretReader(strm.Reader(), do)
}

// InterpretReader is Interpret over an already-decoded byte stream,
// for callers that concatenate multiple content streams.
func InterpretReader(rd io.Reader, do func(stk *Stack, op string)) {
	b := newBuffer(rd, 0)
	b.allowEOF = true
	b.allowObjptr = false
	b.allowStream = false
	var stk Stack
	var dicts []dict
Reading:
	for {
		tok := b.readToken()
		if tok == io.EOF {
			break
		}
		if kw, ok := tok.(keyword); ok {
			switch kw {
			case "null", "[", "]", "<<", ">>":
				// fall through to readObjectAfter below
			case "dict":
				stk.Pop()
				stk.Push(Value{data: make(dict)})
				continue
			case "currentdict":
				if len(dicts) == 0 {
					logger.Error("interpreter: currentdict with empty dict stack")
					panic("no current dictionary")
				}
				stk.Push(Value{data: dicts[len(dicts)-1]})
				continue
			case "begin":
				d := stk.Pop()
				if d.Kind() != Dict {
					logger.Error("interpreter: begin argument is not a dictionary")
					panic("begin: not a dictionary")
				}
				dicts = append(dicts, d.data.(dict))
				continue
			case "end":
				if len(dicts) <= 0 {
					logger.Error("interpreter: end with empty dict stack")
					panic("mismatched begin/end")
				}
				dicts = dicts[:len(dicts)-1]
				continue
			case "def":
				if len(dicts) <= 0 {
					logger.Error("interpreter: def with empty dict stack")
					panic("def without current dictionary")
				}
				x := stk.Pop()
				y := stk.Pop()
				dicts[len(dicts)-1][name(y.Name())] = x.data
				continue
			case "pop":
				stk.Pop()
				continue
			default:
				// Look the keyword up in the dictionary stack before
				// treating it as an operator.
				for i := len(dicts) - 1; i >= 0; i-- {
					if x, ok := dicts[i][name(kw)]; ok {
						stk.Push(Value{data: x})
						continue Reading
					}
				}
				do(&stk, string(kw))
				continue
			}
		}
		b.unreadToken(tok)
		obj := b.readObject()
		stk.Push(Value{data: obj})
	}
}
