// Command tang compiles and runs Tang source, either from a file, from a
// one-off expression, or interactively through the REPL.
package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"flag"

	tang "github.com/dr8co/tang"
	"github.com/dr8co/tang/repl"
)

const version = "0.1.0"

// printUsage displays custom usage information
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `Tang v%s

USAGE:
    %s [OPTIONS]

DESCRIPTION:
    Tang compiles and runs Tang scripting language source.
    Without any flags, it starts an interactive REPL (Read-Eval-Print-Loop).

OPTIONS:
    -f, --file <path>       Execute a Tang script file
    -e, --eval <code>       Evaluate a Tang expression and print the result
    -d, --debug             Enable debug mode with more verbose output
    -v, --version           Show version information
    -h, --help              Show this help message

ENVIRONMENT:
    TANG_DEBUG              Default for -d/--debug
    TANG_DISABLE_BYTECODE   Default: refuse to fall back to the bytecode VM
    TANG_DISABLE_BINARY     Default: skip native code generation

EXAMPLES:
    # Start interactive REPL
    %s

    # Execute a script file
    %s -f script.tang
    %s --file script.tang

    # Evaluate an expression
    %s -e "x = 5; x * 2"

    # Execute with debug mode
    %s -f script.tang -d

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

// envBool reports whether the named environment variable is set to a
// recognized truthy value, used to seed flag defaults per the documented
// TANG_* environment variables.
func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func main() {
	flag.Usage = printUsage

	debugDefault := envBool("TANG_DEBUG")
	disableBytecodeDefault := envBool("TANG_DISABLE_BYTECODE")
	disableBinaryDefault := envBool("TANG_DISABLE_BINARY")

	fileFlag := flag.String("file", "", "Execute a Tang script file")
	evalFlag := flag.String("eval", "", "Evaluate a Tang expression and print the result")
	debugFlag := flag.Bool("debug", debugDefault, "Enable debug mode with more verbose output")
	disableBytecodeFlag := flag.Bool("disable-bytecode", disableBytecodeDefault, "Refuse to fall back to the bytecode VM")
	disableBinaryFlag := flag.Bool("disable-binary", disableBinaryDefault, "Skip native code generation")
	versionFlag := flag.Bool("version", false, "Show version information")

	flag.StringVar(fileFlag, "f", "", "Execute a Tang script file")
	flag.StringVar(evalFlag, "e", "", "Evaluate a Tang expression and print the result")
	flag.BoolVar(debugFlag, "d", debugDefault, "Enable debug mode with more verbose output")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("Tang v%s\n", version)
		return
	}

	flags := tang.FlagDefault
	if *debugFlag {
		flags |= tang.FlagDebug
	}
	if *disableBytecodeFlag {
		flags |= tang.FlagDisableBytecode
	}
	if *disableBinaryFlag {
		flags |= tang.FlagDisableNative
	}

	if *fileFlag != "" {
		executeFile(*fileFlag, flags)
		return
	}

	if *evalFlag != "" {
		evaluateExpression(*evalFlag, flags)
		return
	}

	username := "unknown"
	if usr, err := user.Current(); err == nil {
		username = usr.Username
	}

	repl.Start(username, repl.Options{Debug: *debugFlag})
}

// executeFile reads and runs a Tang script file.
func executeFile(filename string, flags tang.Flags) {
	cleaned := filepath.Clean(filename)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		fmt.Printf("Error getting absolute path: %s\n", err)
		os.Exit(1)
	}

	//nolint:gosec // the path comes from a trusted command-line argument
	content, err := os.ReadFile(absolute)
	if err != nil {
		fmt.Printf("Error reading file: %s\n", err)
		os.Exit(1)
	}

	run(string(content), flags)
}

// evaluateExpression compiles and runs a single expression given on the
// command line.
func evaluateExpression(expr string, flags tang.Flags) {
	run(expr, flags)
}

// run parses, compiles, and executes source, printing its result and
// composed output, and exiting non-zero on any failure.
func run(source string, flags tang.Flags) {
	program, err := tang.Create("tang", source, flags)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer program.Destroy()

	ctx := tang.NewExecutionContext(program)
	defer ctx.Destroy()

	ok := ctx.Execute()
	if out := ctx.Output(); out != "" {
		fmt.Print(out)
	}

	if !ok {
		fmt.Println("Error:", ctx.Result)
		os.Exit(1)
	}

	if ctx.Result != nil {
		fmt.Println(ctx.Result)
	}
}
