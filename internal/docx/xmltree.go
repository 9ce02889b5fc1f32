package docx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Namespace URIs used by the parts this package reads.
const (
	NSWordML = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSMarkup = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// Node is an element of a parsed XML part. Char data is kept in Text in the
// position it appeared relative to child elements only for text nodes
// (Name.Local == ""), which keeps run order intact for w:t content.
type Node struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Children []*Node
	Text     string
}

// IsText reports whether n is a char data node.
func (n *Node) IsText() bool {
	return n.Name.Local == ""
}

// Is reports whether n is the element space:local. An empty space matches
// any namespace.
func (n *Node) Is(space, local string) bool {
	if n == nil || n.Name.Local != local {
		return false
	}
	return space == "" || n.Name.Space == space
}

// Attr returns the value of the first attribute with the given local name.
func (n *Node) Attr(local string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child element with the given local name.
func (n *Node) Child(local string) *Node {
	for _, c := range n.Children {
		if c.Name.Local == local {
			return c
		}
	}
	return nil
}

// Find returns the first descendant (depth-first, document order) with the
// given local name, or nil.
func (n *Node) Find(local string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c != n && c.Name.Local == local {
			found = c
			return false
		}
		return true
	})
	return found
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// parseTree decodes an XML stream into a Node tree rooted at the document
// element. Whitespace-only char data between elements is dropped.
func parseTree(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unexpected end element %s", t.Name.Local)
			}
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			s := string(t)
			if strings.TrimSpace(s) == "" && !preservesSpace(stack[len(stack)-1]) {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, &Node{Text: s})
		}
	}

	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed element %s", stack[len(stack)-1].Name.Local)
	}
	return root, nil
}

// Whitespace inside w:t and w:instrText is content.
func preservesSpace(n *Node) bool {
	return n.Name.Local == "t" || n.Name.Local == "instrText"
}
