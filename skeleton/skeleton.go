// MIT License
//
// Copyright (c) 2024 EASE lab
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package skeleton renders branch-target benchmark sources from C skeletons
// carrying named slot markers such as <label>, <jmp> and <nop>.
package skeleton

import (
	"embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Slot names understood by Render.
const (
	SlotLabel = "label"
	SlotJump  = "jmp"
	SlotNop   = "nop"
)

// Fragments emitted into the slots. The skeleton defines the macros.
const (
	labelFragment = "JMP_LABEL(%d)\n"
	jumpFragment  = "JMP(%d)\n"
	nopFragment   = "NOP "
)

//go:embed skeletons/*.c
var builtin embed.FS

var slotRe = regexp.MustCompile(`<([a-z][a-z_]*)>`)

// Variant selects which branch chain stream a skeleton exercises.
type Variant int

const (
	// LabelChain fills only the label stream: the chain of targets is
	// traversed by falling through it (pure capacity sweeps).
	LabelChain Variant = iota
	// JumpChain additionally requires the jump stream: every target is
	// reached by an explicit taken branch.
	JumpChain
)

func (v Variant) String() string {
	switch v {
	case LabelChain:
		return "labels"
	case JumpChain:
		return "jumps"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// ParseVariant converts the textual form used in configs and flags.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(s) {
	case "", "labels", "label":
		return LabelChain, nil
	case "jumps", "jump", "jmp":
		return JumpChain, nil
	}
	return 0, errors.Errorf("unknown chain variant %q", s)
}

// Params are the generation parameters of one benchmark source.
type Params struct {
	// BranchCount is the chain length under test; the chain has
	// BranchCount-1 links.
	BranchCount int
	// PaddingCount is the number of no-ops separating consecutive targets.
	PaddingCount int
}

// TemplateError reports a skeleton/engine mismatch or invalid parameters.
type TemplateError struct {
	Skeleton string
	Slot     string
	Reason   string
}

func (e *TemplateError) Error() string {
	if e.Slot == "" {
		return fmt.Sprintf("skeleton %s: %s", e.Skeleton, e.Reason)
	}
	return fmt.Sprintf("skeleton %s: slot <%s>: %s", e.Skeleton, e.Slot, e.Reason)
}

type segment struct {
	text string
	slot string
}

// Skeleton is an immutable parsed skeleton source.
type Skeleton struct {
	name     string
	segments []segment
	slots    map[string]int
}

// Parse splits text into literal segments and slot references.
func Parse(name, text string) *Skeleton {
	s := &Skeleton{
		name:  name,
		slots: make(map[string]int),
	}

	last := 0
	for _, loc := range slotRe.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			s.segments = append(s.segments, segment{text: text[last:loc[0]]})
		}
		slot := text[loc[2]:loc[3]]
		s.segments = append(s.segments, segment{slot: slot})
		s.slots[slot]++
		last = loc[1]
	}
	if last < len(text) {
		s.segments = append(s.segments, segment{text: text[last:]})
	}

	return s
}

// Load reads and parses a skeleton file.
func Load(path string) (*Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read skeleton %q", path)
	}
	return Parse(path, string(data)), nil
}

// Default returns the built-in skeleton for a chain variant.
func Default(v Variant) *Skeleton {
	name := "skeletons/capacity.c"
	if v == JumpChain {
		name = "skeletons/jumps.c"
	}
	data, err := builtin.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return Parse(name, string(data))
}

// Name returns the name the skeleton was parsed under.
func (s *Skeleton) Name() string {
	return s.name
}

// Has reports whether the skeleton references slot at least once.
func (s *Skeleton) Has(slot string) bool {
	return s.slots[slot] > 0
}

// Slots lists the distinct slots referenced by the skeleton, sorted.
func (s *Skeleton) Slots() []string {
	slots := make([]string, 0, len(s.slots))
	for slot := range s.slots {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

// Render substitutes every slot occurrence with its generated filler.
// The slot of the variant's stream is required, and so is <nop> when
// p.PaddingCount is non-zero. Slots without a filler are rejected so
// that no marker survives into the generated source.
func (s *Skeleton) Render(p Params, v Variant) (string, error) {
	if p.BranchCount < 1 {
		return "", &TemplateError{Skeleton: s.name, Reason: fmt.Sprintf("branch count %d is less than 1", p.BranchCount)}
	}
	if p.PaddingCount < 0 {
		return "", &TemplateError{Skeleton: s.name, Reason: fmt.Sprintf("padding count %d is negative", p.PaddingCount)}
	}

	required := []string{SlotLabel}
	if v == JumpChain {
		required = []string{SlotLabel, SlotJump}
	}
	if p.PaddingCount > 0 {
		required = append(required, SlotNop)
	}
	for _, slot := range required {
		if !s.Has(slot) {
			return "", &TemplateError{Skeleton: s.name, Slot: slot, Reason: "placeholder is missing"}
		}
	}

	fillers := map[string]string{
		SlotLabel: chain(labelFragment, p.BranchCount),
		SlotJump:  chain(jumpFragment, p.BranchCount),
		SlotNop:   strings.Repeat(nopFragment, p.PaddingCount),
	}
	if v == LabelChain && s.Has(SlotJump) {
		// the jump stream is only substituted for jump chains
		fillers[SlotJump] = ""
	}

	var b strings.Builder
	for _, seg := range s.segments {
		if seg.slot == "" {
			b.WriteString(seg.text)
			continue
		}
		filler, ok := fillers[seg.slot]
		if !ok {
			return "", &TemplateError{Skeleton: s.name, Slot: seg.slot, Reason: "no filler for placeholder"}
		}
		b.WriteString(filler)
	}

	return b.String(), nil
}

// chain emits fragment for i in 1..n-1.
func chain(fragment string, n int) string {
	var b strings.Builder
	for i := 1; i < n; i++ {
		fmt.Fprintf(&b, fragment, i)
	}
	return b.String()
}
