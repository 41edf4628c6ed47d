package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"invasiondepth/pkg/config"
)

type command struct {
	name  string
	usage string
	run   func(cfg *config.Config, args []string) error
}

var commands = []command{
	{"sort", "move acquisition images into one folder per position", runSort},
	{"build", "create the image database of every position folder", runBuild},
	{"detect", "estimate cell depths for every position", runDetect},
	{"aggregate", "plot pooled invasion depth distributions per condition", runAggregate},
	{"positions", "plot the invasion depth distribution of every single position", runPositions},
	{"qq", "compare manually recorded heights with detected depths", runQQ},
	{"init-config", "write a configuration file with default values", runInitConfig},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: invasiondepth [-config file] <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
}

func main() {
	configPath := flag.String("config", "invasiondepth.yaml", "Path to the YAML configuration file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	name := flag.Arg(0)
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		flag.Usage()
		os.Exit(1)
	}

	var cfg *config.Config
	if cmd.name == "init-config" {
		cfg = config.DefaultConfig()
	} else {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}

	fmt.Println("================================")
	fmt.Println("CELL INVASION DEPTH FROM FLUORESCENCE Z-STACKS")
	fmt.Printf("Command: %s\n", strings.ToUpper(cmd.name))
	fmt.Println("================================")

	startTime := time.Now()
	args := flag.Args()[1:]
	if cmd.name == "init-config" {
		args = append([]string{*configPath}, args...)
	}
	if err := cmd.run(cfg, args); err != nil {
		log.Fatalf("%s failed: %v", cmd.name, err)
	}

	fmt.Printf("\n%s completed in %.2f seconds\n", cmd.name, time.Since(startTime).Seconds())
}
