package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"scriptc/pkg/bytecode"
	"scriptc/pkg/compiler"
)

var (
	dumpCode    = flag.Bool("code", false, "disassemble the emitted code")
	dumpFixups  = flag.Bool("fixups", false, "list the fixups")
	dumpStrings = flag.Bool("strings", false, "list the string repository")
	dumpExports = flag.Bool("exports", false, "list the export table")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file.asc\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	path := flag.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read error:", err)
		os.Exit(1)
	}

	section := filepath.Base(path)
	mod, msgs := compiler.Compile(section, string(data))
	for _, m := range msgs.GetMessages() {
		fmt.Fprintf(os.Stderr, "%s: %s:%d: %s\n", m.Severity, m.Section, m.Line, m.Text)
	}
	if mod == nil {
		os.Exit(1)
	}

	fmt.Printf("%s: %d code cells, %d fixups, %d imports, %d exports, %d bytes of globals\n",
		section, len(mod.Code), len(mod.Fixups), len(mod.Imports), len(mod.Exports), mod.GlobalDataSize)

	if *dumpCode {
		disassemble(mod)
	}
	if *dumpFixups {
		for _, fx := range mod.Fixups {
			fmt.Printf("  fixup %-10s cell %d (value %d)\n", bytecode.FixupName(fx.Type), fx.Loc, mod.Code[fx.Loc])
		}
	}
	if *dumpStrings {
		for off := int32(0); int(off) < len(mod.Strings); {
			s, err := mod.StringAt(off)
			if err != nil {
				break
			}
			fmt.Printf("  string @%-5d %q\n", off, s)
			off += int32(len(s)) + 1
		}
	}
	if *dumpExports {
		for _, ex := range mod.Exports {
			if ex.Type == bytecode.ExportFunction {
				fmt.Printf("  export func %s @%d (%d args)\n", ex.Name, ex.Loc, ex.NumArgs)
			} else {
				fmt.Printf("  export var  %s @%d\n", ex.Name, ex.Loc)
			}
		}
	}
}

func disassemble(mod *bytecode.Module) {
	for loc := 0; loc < len(mod.Code); {
		op := mod.Code[loc]
		nargs := bytecode.Args(op)
		if nargs < 0 {
			fmt.Printf("  %5d: ?? %d\n", loc, op)
			loc++
			continue
		}
		fmt.Printf("  %5d: %s", loc, bytecode.OpName(op))
		for i := 1; i <= nargs && loc+i < len(mod.Code); i++ {
			fmt.Printf(" %d", mod.Code[loc+i])
		}
		fmt.Println()
		loc += 1 + nargs
	}
}
