// Copyright 2019-2020 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package container

// CLElement struct describes an element of a circular doubly-linked list.
// Every non-nil element belongs to exactly one ring: a fresh element forms
// the ring of itself. A list is referred to by one of its elements (the
// head), a nil *CLElement is the empty list.
type CLElement struct {
	prev, next *CLElement
	Val        interface{}
}

// NewCLElement returns the new CLElement which refers to itself
func NewCLElement() *CLElement {
	cle := new(CLElement)
	cle.next = cle
	cle.prev = cle
	return cle
}

// Next returns the following element of the ring
func (cle *CLElement) Next() *CLElement {
	return cle.next
}

// Prev returns the preceding element of the ring
func (cle *CLElement) Prev() *CLElement {
	return cle.prev
}

// Append inserts the chain ring right after cle and returns the head of the
// combined ring. Either receiver or argument may be nil, the other one is
// returned then.
func (cle *CLElement) Append(chain *CLElement) *CLElement {
	if chain == nil {
		return cle
	}
	if cle == nil {
		return chain
	}
	n := cle.next
	chp := chain.prev
	cle.next = chain
	chain.prev = cle
	chp.next = n
	n.prev = chp
	return cle
}

// TearOff removes e from the ring headed by cle and turns e into the ring of
// itself. It returns the new head: nil if e was the only element, cle.next if
// cle is e, or cle itself otherwise.
func (cle *CLElement) TearOff(e *CLElement) *CLElement {
	if e == nil {
		return cle
	}
	if e == cle && cle.next == cle {
		return nil
	}
	res := cle
	if res == e {
		res = cle.next
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = e
	e.next = e
	return res
}

// Len returns the number of elements in the ring. It walks the whole ring,
// so it has O(N) complexity.
func (cle *CLElement) Len() int {
	if cle == nil {
		return 0
	}
	cnt := 1
	for c := cle.next; c != cle; c = c.next {
		cnt++
	}
	return cnt
}
