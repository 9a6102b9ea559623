package compiler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// ErrUnreadable is returned when a record's structural wrapper cannot be
	// parsed. Callers skip the record and continue with the next one.
	ErrUnreadable = errors.New("timeline unreadable")
	// ErrBadTimestamp is returned for a timestamp matching neither the
	// day:seconds nor the legacy day:hour:min:sec[:ms] form
	ErrBadTimestamp = errors.New("malformed timestamp")
)

// Node tags and event classes
const (
	TagLab        = "L"
	TagVitals     = "V"
	TagEvent      = "E"
	TagMedication = "M"

	ClassAdmission = "ADM"
	ClassDischarge = "DIS"
	ClassDiagnosis = "DX"
	ClassProcedure = "PROC"
)

// Node is one raw child node of a timeline record, in document order.
type Node struct {
	Tag     string
	Class   string
	Time    TimeCode
	HasTime bool
	Body    string
}

// IsPanel reports whether the node is a numeric name=value panel.
func (n *Node) IsPanel() bool {
	return n.Tag == TagLab || n.Tag == TagVitals
}

// rawRecord is one parsed but uncompiled timeline record.
type rawRecord struct {
	id     string
	gender string
	weight float64
	nodes  []Node
}

// parseRecord parses the structural wrapper and child nodes of one record.
// A broken wrapper makes the whole record unreadable; a broken child node is
// a data-quality issue, logged and skipped.
func parseRecord(log logrus.FieldLogger, text string) (*rawRecord, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: record too short", ErrUnreadable)
	}

	head := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(head, "<TL") || !strings.HasSuffix(head, ">") {
		return nil, fmt.Errorf("%w: missing opening tag", ErrUnreadable)
	}

	if strings.TrimSpace(lines[len(lines)-1]) != "</TL>" {
		return nil, fmt.Errorf("%w: missing closing tag", ErrUnreadable)
	}

	attrs := parseAttrs(strings.TrimSuffix(strings.TrimPrefix(head, "<TL"), ">"))

	rec := &rawRecord{
		id:     attrs["id"],
		gender: attrs["gender"],
	}

	if wt, err := strconv.ParseFloat(attrs["wt"], 64); err == nil {
		rec.weight = wt
	}

	for _, line := range lines[1 : len(lines)-1] {
		node, ok := parseNode(line)
		if !ok {
			log.WithField("line", line).Debug("Skipping unparseable node")

			continue
		}

		rec.nodes = append(rec.nodes, node)
	}

	return rec, nil
}

// parseNode parses one child line of the form
//
//	<L t="7300:28800">creatinine=1.0;sodium=140</L>
//	<E t="7300:28800" class="ADM">ward</E>
//	<M t="7301:43200">furosemide:40:IV:2</M>
//
// The t attribute may be absent; the compiler then inherits the previous
// node's time code.
func parseNode(line string) (Node, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "<") {
		return Node{}, false
	}

	gt := strings.IndexByte(line, '>')
	if gt < 0 {
		return Node{}, false
	}

	open := line[1:gt]

	tag := open
	if sp := strings.IndexByte(open, ' '); sp >= 0 {
		tag = open[:sp]
	}

	if tag == "" || tag == "/" {
		return Node{}, false
	}

	closing := "</" + tag + ">"
	if !strings.HasSuffix(line, closing) {
		return Node{}, false
	}

	node := Node{
		Tag:  tag,
		Body: line[gt+1 : len(line)-len(closing)],
	}

	attrs := parseAttrs(strings.TrimPrefix(open, tag))
	node.Class = attrs["class"]

	if node.IsPanel() {
		node.Class = tag
	}

	if ts, ok := attrs["t"]; ok {
		tc, err := parseTimestamp(ts)
		if err == nil {
			node.Time = tc
			node.HasTime = true
		}
	}

	return node, true
}

// parseAttrs parses space-separated key="value" pairs.
func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)

	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			return attrs
		}

		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return attrs
		}

		key := strings.TrimSpace(s[:eq])
		rest := s[eq+1:]

		if !strings.HasPrefix(rest, `"`) {
			return attrs
		}

		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return attrs
		}

		attrs[key] = rest[1 : 1+end]
		s = rest[end+2:]
	}
}

// parseTimestamp parses day:secondsInDay or the legacy
// day:hour:min:sec[:ms] form. Days are absolute day-of-life counts.
func parseTimestamp(s string) (TimeCode, error) {
	parts := strings.Split(s, ":")

	fields := make([]int64, len(parts))

	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return TimeCode{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
		}

		fields[i] = v
	}

	switch len(fields) {
	case 2:
		if fields[1] >= 86400 {
			return TimeCode{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
		}

		return TimeCode{Day: fields[0], Sec: fields[1]}, nil
	case 4, 5:
		// Legacy day:hour:min:sec[:ms]; milliseconds are truncated.
		sec := fields[1]*3600 + fields[2]*60 + fields[3]
		if fields[1] >= 24 || fields[2] >= 60 || fields[3] >= 60 || sec >= 86400 {
			return TimeCode{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
		}

		return TimeCode{Day: fields[0], Sec: sec}, nil
	default:
		return TimeCode{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
}
