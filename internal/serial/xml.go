package serial

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

type xmlNode struct {
	XMLName    xml.Name      `xml:"node"`
	Type       string        `xml:"type,attr"`
	Properties []xmlProperty `xml:"property"`
	Children   []xmlNode     `xml:"node"`
}

type xmlProperty struct {
	Name     string `xml:"name,attr"`
	Kind     string `xml:"kind,attr"`
	Encoding string `xml:"encoding,attr,omitempty"`
	Value    string `xml:",chardata"`
}

const encodingBase64 = "base64"

// xmlSafe reports whether s survives XML character data unchanged: valid
// UTF-8 holding only characters XML 1.0 allows.
func xmlSafe(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r >= 0x20 && r <= 0xD7FF:
		case r >= 0xE000 && r <= 0xFFFD:
		case r >= 0x10000 && r <= utf8.MaxRune:
		default:
			return false
		}
	}
	return true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func toXMLNode(n *Node) xmlNode {
	x := xmlNode{Type: n.typ}
	for _, name := range n.PropertyNames() {
		v := n.properties[name]
		p := xmlProperty{Name: name, Kind: v.kind.String()}
		switch {
		case v.kind == KindBlob:
			p.Value = base64.StdEncoding.EncodeToString(v.b)
		case v.kind == KindString && !xmlSafe(v.s):
			p.Encoding = encodingBase64
			p.Value = base64.StdEncoding.EncodeToString([]byte(v.s))
		default:
			p.Value = v.String()
		}
		x.Properties = append(x.Properties, p)
	}
	for _, c := range n.children {
		x.Children = append(x.Children, toXMLNode(c))
	}
	return x
}

func fromXMLNode(x xmlNode, depth int) (*Node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", MaxDepth)
	}
	if x.Type == "" {
		return nil, fmt.Errorf("node without type")
	}
	n := New(x.Type)
	for _, p := range x.Properties {
		kind, err := parseKind(p.Kind)
		if err != nil {
			return nil, err
		}
		var v Value
		switch kind {
		case KindInt:
			i, err := strconv.ParseInt(p.Value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", p.Name, err)
			}
			v = IntValue(i)
		case KindFloat:
			f, err := strconv.ParseFloat(p.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", p.Name, err)
			}
			v = FloatValue(f)
		case KindString:
			if p.Encoding != encodingBase64 {
				v = StringValue(p.Value)
				break
			}
			b, err := base64.StdEncoding.DecodeString(p.Value)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", p.Name, err)
			}
			v = StringValue(string(b))
		case KindBool:
			b, err := strconv.ParseBool(p.Value)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", p.Name, err)
			}
			v = BoolValue(b)
		case KindBlob:
			b, err := base64.StdEncoding.DecodeString(p.Value)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", p.Name, err)
			}
			v = Value{kind: KindBlob, b: b}
		}
		n.properties[p.Name] = v
	}
	for _, xc := range x.Children {
		c, err := fromXMLNode(xc, depth+1)
		if err != nil {
			return nil, err
		}
		c.parent = n
		n.children = append(n.children, c)
	}
	return n, nil
}

// WriteXML writes the XML mirror of the tree, indented.
func (n *Node) WriteXML(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(toXMLNode(n)); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	return enc.Flush()
}

// ToXML returns the XML mirror as a string.
func (n *Node) ToXML() string {
	x, err := xml.MarshalIndent(toXMLNode(n), "", "  ")
	if err != nil {
		return ""
	}
	return string(x)
}

// ReadXML parses a tree written by WriteXML.
func ReadXML(r io.Reader) (*Node, error) {
	var x xmlNode
	if err := xml.NewDecoder(r).Decode(&x); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	n, err := fromXMLNode(x, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return n, nil
}
