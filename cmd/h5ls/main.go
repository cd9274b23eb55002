// Command h5ls lists the contents of an HDF5 file.
package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/pflag"

	"github.com/fennelab/hdf5/hdf5"
)

var (
	recursive = pflag.BoolP("recursive", "r", false, "descend into groups")
	showAttrs = pflag.BoolP("attributes", "a", false, "show attributes")
	showData  = pflag.BoolP("data", "d", false, "print dataset values")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, "Usage: h5ls [flags] <file.h5> [path]\n\n"+
			"Lists the objects of an HDF5 file. path defaults to the root group\n"+
			"and may name a group, a dataset, or an attribute (object@attr).\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 1 || len(args) > 2 {
		pflag.Usage()
		os.Exit(2)
	}

	f, err := hdf5.Open(args[0])
	if err != nil {
		fail(err)
	}
	defer f.Close()

	target := "/"
	if len(args) == 2 {
		target = args[1]
	}
	if err := run(f, target); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "h5ls:", err)
	os.Exit(1)
}

func run(f *hdf5.File, target string) error {
	if strings.Contains(target, "@") {
		val, err := f.ReadAttr(target)
		if err != nil {
			return err
		}
		fmt.Println(formatValue(val))
		return nil
	}

	if ds, err := f.OpenDataset(target); err == nil {
		printDataset(ds.Name(), ds)
		return nil
	}

	g, err := f.OpenGroup(target)
	if err != nil {
		return err
	}
	if *recursive {
		return walkFrom(g)
	}
	return listGroup(g)
}

// listGroup prints one line per child with its link kind.
func listGroup(g *hdf5.Group) error {
	children, err := g.Children()
	if err != nil {
		return err
	}
	if *showAttrs {
		printObjAttrs(g.Attrs(), g.Attr)
	}
	for _, c := range children {
		switch {
		case c.Kind == hdf5.KindGroup:
			desc := "Group"
			if c.Link == hdf5.LinkSoft {
				desc += " (soft link)"
			}
			fmt.Printf("%-24s %s\n", c.Name, desc)
			if *showAttrs {
				if sub, err := g.OpenGroup(c.Name); err == nil {
					printObjAttrs(sub.Attrs(), sub.Attr)
				}
			}

		case c.Kind == hdf5.KindDataset:
			ds, err := g.OpenDataset(c.Name)
			if err != nil {
				fmt.Printf("%-24s Dataset (unreadable: %v)\n", c.Name, err)
				continue
			}
			printDataset(c.Name, ds)

		case c.Link == hdf5.LinkExternal:
			fmt.Printf("%-24s External Link\n", c.Name)

		default:
			fmt.Printf("%-24s Dangling Link\n", c.Name)
		}
	}
	return nil
}

// walkFrom prints the whole subtree with full paths.
func walkFrom(g *hdf5.Group) error {
	return hdf5.Walk(g, func(path string, obj any, err error) error {
		switch o := obj.(type) {
		case *hdf5.Group:
			fmt.Printf("%-24s Group\n", path)
			if *showAttrs {
				printObjAttrs(o.Attrs(), o.Attr)
			}
		case *hdf5.Dataset:
			printDataset(path, o)
		default:
			fmt.Printf("%-24s ERROR: %v\n", path, err)
		}
		return nil
	})
}

func printDataset(name string, ds *hdf5.Dataset) {
	fmt.Printf("%-24s Dataset %s %s\n", name, formatShape(ds.Shape()), ds.DataType())
	if *showAttrs {
		printObjAttrs(ds.Attrs(), ds.Attr)
	}
	if *showData {
		var v any
		if err := ds.Read(&v); err != nil {
			fmt.Printf("    data: <error: %v>\n", err)
			return
		}
		fmt.Printf("    data: %s\n", formatValue(v))
	}
}

func printObjAttrs(names []string, lookup func(string) *hdf5.Attribute) {
	for _, name := range names {
		attr := lookup(name)
		if attr == nil {
			continue
		}
		val, err := attr.Value()
		if err != nil {
			fmt.Printf("    @%s = <error: %v>\n", name, err)
			continue
		}
		fmt.Printf("    @%s = %s\n", name, formatValue(val))
	}
}

func formatShape(dims []uint64) string {
	if len(dims) == 0 {
		return "{scalar}"
	}
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// maxDumpElements caps how many elements -d prints per dataset.
const maxDumpElements = 64

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return fmt.Sprintf("%v", v)
	}
	if rv.Len() > maxDumpElements {
		return fmt.Sprintf("%v... (%d elements)",
			rv.Slice(0, maxDumpElements).Interface(), rv.Len())
	}
	return fmt.Sprintf("%v", v)
}
