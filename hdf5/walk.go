package hdf5

import (
	"errors"
	"path"
)

// WalkFunc is called once per object during traversal. obj is either a
// *Group or a *Dataset. For children that cannot be opened (dangling
// soft links, external links), fn receives a nil obj and the resolution
// error. Returning a non-nil error stops the walk.
type WalkFunc func(path string, obj interface{}, err error) error

// Walk visits g and every object reachable below it, depth-first with
// children in name order. Soft links are followed. An object reachable
// under several names is reported at each path but descended only once,
// so hierarchies whose hard links form cycles still terminate.
func Walk(g *Group, fn WalkFunc) error {
	return walkObjects(g, fn, make(map[uint64]bool))
}

func walkObjects(g *Group, fn WalkFunc, visited map[uint64]bool) error {
	if err := fn(g.Path(), g, nil); err != nil {
		return err
	}
	if visited[g.header.Address] {
		return nil
	}
	visited[g.header.Address] = true

	children, err := g.Children()
	if err != nil {
		return err
	}

	for _, child := range children {
		childPath := path.Join(g.Path(), child.Name)

		switch child.Kind {
		case KindGroup:
			sub, err := g.OpenGroup(child.Name)
			if err != nil {
				if err := fn(childPath, nil, err); err != nil {
					return err
				}
				continue
			}
			if err := walkObjects(sub, fn, visited); err != nil {
				return err
			}

		case KindDataset:
			ds, err := g.OpenDataset(child.Name)
			if err != nil {
				if err := fn(childPath, nil, err); err != nil {
					return err
				}
				continue
			}
			if err := fn(childPath, ds, nil); err != nil {
				return err
			}

		default:
			// No object behind the link; report why it cannot be followed.
			if _, err := g.open(child.Name); err != nil {
				if err := fn(childPath, nil, err); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// AttrInfo describes one attribute encountered by WalkAttrs.
type AttrInfo struct {
	// Path is the full attribute path, e.g. "/run1/data@units".
	Path string

	// ObjectPath is the path of the object the attribute lives on.
	ObjectPath string

	// ObjectType is "group" or "dataset".
	ObjectType string

	// Name is the attribute name.
	Name string

	// Attr gives access to the attribute's type and dataspace.
	Attr *Attribute

	// Value is the decoded attribute value, nil when decoding failed.
	Value interface{}

	// Err is the decoding error, if any.
	Err error
}

// WalkAttrsFunc is called once per attribute. Returning a non-nil error
// stops the walk.
type WalkAttrsFunc func(info AttrInfo) error

// WalkAttrs visits every attribute on every group and dataset in the
// file, in Walk order. Children that cannot be opened are skipped.
func (f *File) WalkAttrs(fn WalkAttrsFunc) error {
	if f.closed {
		return ErrClosed
	}

	return Walk(f.root, func(objPath string, obj interface{}, err error) error {
		if err != nil {
			return nil
		}

		var names []string
		var lookup func(string) *Attribute
		objType := "group"
		switch o := obj.(type) {
		case *Group:
			names, lookup = o.Attrs(), o.Attr
		case *Dataset:
			names, lookup, objType = o.Attrs(), o.Attr, "dataset"
		}

		for _, name := range names {
			info := AttrInfo{
				Path:       JoinAttrPath(objPath, name),
				ObjectPath: objPath,
				ObjectType: objType,
				Name:       name,
				Attr:       lookup(name),
			}
			if info.Attr != nil {
				info.Value, info.Err = info.Attr.Value()
			}
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}

// ErrStopWalk stops a walk early from inside the callback; the walk
// returns it unchanged.
var ErrStopWalk = errors.New("walk stopped")

// IsStopWalk reports whether err is ErrStopWalk.
func IsStopWalk(err error) bool {
	return errors.Is(err, ErrStopWalk)
}
