// Package sh provides the operator shell sending commands to the engine
// controllers.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/ecu.go/pkg/comms"
	"github.com/robotalks/ecu.go/pkg/env"
)

// Sender transmits packets from mission control. ground.Station
// implements it.
type Sender interface {
	Send(p comms.Packet, to comms.NetworkAddress) error
}

// CommandFunc implements a command.
type CommandFunc func(s *Shell, args []string) error

// Command is a shell command.
type Command struct {
	Name    string
	Aliases []string
	Help    string
	Func    CommandFunc
}

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Config *env.Config
	Sender Sender
	Target comms.NetworkAddress
	// Out receives the output, the ishell console when nil.
	Out io.Writer
	// Sleep waits between timed steps.
	Sleep func(time.Duration)

	shell *ishell.Shell
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	commands = []*Command{&TargetCmd}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*Command) {
	commands = append(commands, cmds...)
}

// Commands returns the registered commands.
func Commands() []*Command {
	return commands
}

// New creates a new shell targeting the configured engine.
func New(conf *env.Config, sender Sender) *Shell {
	return &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Config:      conf,
		Sender:      sender,
		Target:      conf.ECU.Address(),
		Out:         os.Stdout,
		Sleep:       time.Sleep,
	}
}

// Find looks up a command by name or alias.
func Find(name string) *Command {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return cmd
			}
		}
	}
	return nil
}

// Exec runs a command.
func (s *Shell) Exec(name string, args ...string) error {
	cmd := Find(name)
	if cmd == nil {
		return fmt.Errorf("unknown command %q", name)
	}
	return cmd.Func(s, args)
}

// Printf prints to the output.
func (s *Shell) Printf(format string, args ...interface{}) {
	if s.Out != nil {
		fmt.Fprintf(s.Out, format, args...)
		return
	}
	if s.shell != nil {
		s.shell.Printf(format, args...)
	}
}

func (s *Shell) prompt() string {
	return fmt.Sprintf("[%s] > ", s.Target)
}

// Send sends p to the target and reports it.
func (s *Shell) Send(p comms.Packet) error {
	if err := s.Sender.Send(p, s.Target); err != nil {
		return err
	}
	tag := comms.TagOf(p)
	if s.OutputJSON {
		out, err := json.Marshal(map[string]interface{}{
			"packet": tag.String(),
			"to":     s.Target.String(),
			"body":   p,
		})
		if err != nil {
			return err
		}
		s.Printf("%s\n", out)
		return nil
	}
	s.Printf("%s %s OK\n", s.Target, tag)
	return nil
}

// Wait sleeps for d.
func (s *Shell) Wait(d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(d)
	}
}

func (s *Shell) ishellCmd(cmd *Command) *ishell.Cmd {
	return &ishell.Cmd{
		Name:    cmd.Name,
		Aliases: cmd.Aliases,
		Help:    cmd.Help,
		Func: func(c *ishell.Context) {
			if err := cmd.Func(c.Get(shellKey).(*Shell), c.Args); err != nil {
				c.Err(err)
			}
			c.SetPrompt(s.prompt())
		},
	}
}

// Run runs the shell. With args, the command is evaluated and the shell exits.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Exec(args[0], args[1:]...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if !s.Interactive {
		log.Fatalln("command expected")
	}
	s.shell = ishell.New()
	s.Out = nil
	s.shell.Set(shellKey, s)
	s.shell.SetPrompt(s.prompt())
	for _, cmd := range commands {
		s.shell.AddCmd(s.ishellCmd(cmd))
	}
	s.shell.Run()
}

// ParseTarget parses an engine index or "all".
func ParseTarget(str string) (comms.NetworkAddress, error) {
	if strings.EqualFold(str, "all") {
		return comms.Broadcast, nil
	}
	n, err := strconv.ParseUint(str, 10, 8)
	if err != nil || n >= comms.MaxEngineControllers {
		return comms.NetworkAddress{}, fmt.Errorf("invalid engine %q", str)
	}
	return comms.EngineController(uint8(n)), nil
}

// TargetCmd selects the engine controller receiving commands.
var TargetCmd = Command{
	Name:    "target",
	Aliases: []string{"t"},
	Help:    "[INDEX|all]",
	Func: func(s *Shell, args []string) error {
		if len(args) > 0 {
			target, err := ParseTarget(args[0])
			if err != nil {
				return err
			}
			s.Target = target
		}
		s.Printf("%s\n", s.Target)
		return nil
	},
}
