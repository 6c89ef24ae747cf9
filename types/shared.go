package types

import (
	"fmt"
	"strings"
)

// Sentence is one tokenized corpus line, as vocabulary ids.
type Sentence []int

// Document is the run of sentences between two blank lines.
type Document []Sentence

// Segment markers used in the segment-id arrays.
const (
	SegmentPad = 0
	SegmentA   = 1
	SegmentB   = 2
)

// Specials holds the reserved vocabulary ids shared by the builders and the
// vocabulary.
type Specials struct {
	Pad  int `yaml:"pad"`
	Unk  int `yaml:"unk"`
	Cls  int `yaml:"cls"`
	Sep  int `yaml:"sep"`
	Mask int `yaml:"mask"`
}

// DefaultSpecials follows the BERT vocabulary layout.
var DefaultSpecials = Specials{Pad: 0, Unk: 100, Cls: 101, Sep: 102, Mask: 103}

// IsStructural reports whether id marks sequence structure rather than
// content. Structural positions are never masked.
func (s Specials) IsStructural(id int) bool {
	return id == s.Cls || id == s.Sep
}

// IsReserved reports whether id is one of the ids that random replacement
// must never produce.
func (s Specials) IsReserved(id int) bool {
	return id == s.Pad || id == s.Cls || id == s.Sep || id == s.Mask
}

func (s Specials) Validate() error {
	seen := map[int]string{}
	for _, entry := range []struct {
		name string
		id   int
	}{{"pad", s.Pad}, {"cls", s.Cls}, {"sep", s.Sep}, {"mask", s.Mask}} {
		if entry.id < 0 {
			return fmt.Errorf("reserved id %s is negative: %d",
				entry.name, entry.id)
		}
		if other, ok := seen[entry.id]; ok {
			return fmt.Errorf("reserved ids %s and %s share id %d",
				other, entry.name, entry.id)
		}
		seen[entry.id] = entry.name
	}
	return nil
}

// Task selects the pretraining objective an instance is built for.
type Task uint8

const (
	TaskBert Task = iota // masked LM + next sentence prediction
	TaskLM
	TaskCls
	TaskMLM
	TaskNSP
	TaskS2S
)

var taskNames = [...]string{"bert", "lm", "cls", "mlm", "nsp", "s2s"}

func (t Task) String() string {
	if int(t) < len(taskNames) {
		return taskNames[t]
	}
	return fmt.Sprintf("task(%d)", uint8(t))
}

// ParseTask maps a task name onto a Task.
func ParseTask(name string) (Task, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for idx := range taskNames {
		if taskNames[idx] == name {
			return Task(idx), nil
		}
	}
	return 0, fmt.Errorf("unknown task %q, expected one of %s", name,
		strings.Join(taskNames[:], ", "))
}

func (t Task) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Task) UnmarshalText(text []byte) error {
	parsed, err := ParseTask(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DocumentOriented is true for tasks that pair sentences drawn from
// blank-line separated documents.
func (t Task) DocumentOriented() bool {
	return t == TaskBert || t == TaskNSP
}

// LineRanged is true when workers split the corpus by line count instead of
// by bytes.
func (t Task) LineRanged() bool {
	return t == TaskBert
}

// Field names an instance slot.
type Field string

const (
	FieldSrc   Field = "src"
	FieldTgt   Field = "tgt"
	FieldLabel Field = "label"
	FieldSeg   Field = "seg"
)

// Fields lists the instance slots a task populates, in batch order.
func (t Task) Fields() []Field {
	switch t {
	case TaskBert:
		return []Field{FieldSrc, FieldTgt, FieldLabel, FieldSeg}
	case TaskCls, TaskNSP:
		return []Field{FieldSrc, FieldLabel, FieldSeg}
	default:
		return []Field{FieldSrc, FieldTgt, FieldSeg}
	}
}

// HasField reports whether the task populates field f.
func (t Task) HasField(f Field) bool {
	for _, field := range t.Fields() {
		if field == f {
			return true
		}
	}
	return false
}
