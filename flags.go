package buildwire

import (
	"fmt"
	"sort"
	"strings"
)

// The flag mappers derive the flat ordered flag list each request carries.
// Inputs that would be parsed as flags by the worker are rejected here,
// before any request is sent.

func validateTarget(target string) error {
	if strings.ContainsRune(target, ',') {
		return fmt.Errorf("invalid target: %q", target)
	}
	return nil
}

func defineFlags(define map[string]string) []string {
	keys := make([]string, 0, len(define))
	for k := range define {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	flags := make([]string, 0, len(keys))
	for _, k := range keys {
		flags = append(flags, fmt.Sprintf("--define:%s=%s", k, define[k]))
	}
	return flags
}

func flagsForBuildOptions(opts BuildOptions, isTTY bool) ([]string, error) {
	flags := []string{}
	if isTTY {
		flags = append(flags, "--color=true")
	}
	if opts.Bundle {
		flags = append(flags, "--bundle")
	}
	if opts.Minify {
		flags = append(flags, "--minify")
	}
	if opts.Sourcemap {
		flags = append(flags, "--sourcemap")
	}
	if opts.Target != "" {
		if err := validateTarget(opts.Target); err != nil {
			return nil, err
		}
		flags = append(flags, "--target="+opts.Target)
	}
	if opts.Outfile != "" {
		flags = append(flags, "--outfile="+opts.Outfile)
	}
	flags = append(flags, defineFlags(opts.Define)...)
	for _, external := range opts.External {
		flags = append(flags, "--external:"+external)
	}
	for _, entryPoint := range opts.EntryPoints {
		if strings.HasPrefix(entryPoint, "-") {
			return nil, fmt.Errorf("invalid entry point: %q", entryPoint)
		}
		flags = append(flags, entryPoint)
	}
	return flags, nil
}

func flagsForTransformOptions(opts TransformOptions, isTTY bool) ([]string, error) {
	flags := []string{}
	if isTTY {
		flags = append(flags, "--color=true")
	}
	if opts.Loader != "" {
		flags = append(flags, "--loader="+opts.Loader)
	}
	if opts.Target != "" {
		if err := validateTarget(opts.Target); err != nil {
			return nil, err
		}
		flags = append(flags, "--target="+opts.Target)
	}
	if opts.Minify {
		flags = append(flags, "--minify")
	}
	if opts.Sourcemap {
		flags = append(flags, "--sourcemap")
	}
	flags = append(flags, defineFlags(opts.Define)...)
	return flags, nil
}

func stringList(flags []string) []interface{} {
	out := make([]interface{}, len(flags))
	for i, f := range flags {
		out[i] = f
	}
	return out
}
