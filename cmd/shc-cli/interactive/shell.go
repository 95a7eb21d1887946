// Package interactive provides the interactive command shell for shc-cli.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/shc-gateway/shc-go/pkg/bridge"
	"github.com/shc-gateway/shc-go/pkg/discovery"
	"github.com/shc-gateway/shc-go/pkg/services"
)

const commandTimeout = 10 * time.Second

// Shell handles interactive mode for shc-cli.
type Shell struct {
	bridge *bridge.Bridge
	rl     *readline.Instance
}

// New creates a new interactive shell around a bridge.
func New(b *bridge.Bridge) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "shc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Shell{bridge: b, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline input. Use
// this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "status":
			s.cmdStatus()

		case "rooms":
			s.cmdRooms()

		case "devices", "ls":
			s.cmdDevices()

		case "scan":
			s.cmdScan()

		case "discover":
			s.cmdDiscover(ctx)

		case "refresh":
			s.cmdRefresh(ctx, args)

		case "on":
			s.cmdSimple(ctx, args, services.ChannelPowerSwitch, services.On())

		case "off":
			s.cmdSimple(ctx, args, services.ChannelPowerSwitch, services.Off())

		case "up":
			s.cmdSimple(ctx, args, services.ChannelLevel, services.Up())

		case "down":
			s.cmdSimple(ctx, args, services.ChannelLevel, services.Down())

		case "stop":
			s.cmdSimple(ctx, args, services.ChannelLevel, services.Stop())

		case "set":
			s.cmdSet(ctx, args)

		case "smoke-test":
			s.cmdSimple(ctx, args, services.ChannelSmokeCheck, services.Play())

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (try 'help')\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	out := s.rl.Stdout()
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  status                       - Show bridge state")
	fmt.Fprintln(out, "  rooms                        - List rooms")
	fmt.Fprintln(out, "  devices, ls                  - List devices")
	fmt.Fprintln(out, "  scan                         - List devices as discoverable things")
	fmt.Fprintln(out, "  discover                     - Browse for controllers via mDNS")
	fmt.Fprintln(out, "  refresh <device> <channel>   - Re-read one channel")
	fmt.Fprintln(out, "  on <device>                  - Switch a device on")
	fmt.Fprintln(out, "  off <device>                 - Switch a device off")
	fmt.Fprintln(out, "  up <device>                  - Open a shutter")
	fmt.Fprintln(out, "  down <device>                - Close a shutter")
	fmt.Fprintln(out, "  stop <device>                - Stop shutter movement")
	fmt.Fprintln(out, "  set <device> <channel> <value> [unit] - Set a numeric channel")
	fmt.Fprintln(out, "  smoke-test <device>          - Trigger a smoke detector test")
	fmt.Fprintln(out, "  quit                         - Exit")
}

func (s *Shell) cmdStatus() {
	fmt.Fprintf(s.rl.Stdout(), "Bridge state: %s\n", s.bridge.State())
}

func (s *Shell) cmdRooms() {
	rooms := s.bridge.Rooms()
	if len(rooms) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No rooms (bridge not online yet?)")
		return
	}
	for _, room := range rooms {
		fmt.Fprintf(s.rl.Stdout(), "  %-8s %s\n", room.ID, room.Name)
	}
}

func (s *Shell) cmdDevices() {
	devices := s.bridge.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No devices (bridge not online yet?)")
		return
	}
	for _, device := range devices {
		roomName := "-"
		if room, ok := s.bridge.RoomForDevice(device.ID); ok {
			roomName = room.Name
		}
		fmt.Fprintf(s.rl.Stdout(), "  %-45s %-22s %-14s %s\n",
			device.ID, device.Name, device.DeviceModel, roomName)
	}
}

func (s *Shell) cmdScan() {
	things := s.bridge.StartScan()
	if len(things) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No supported devices found")
		return
	}
	for _, thing := range things {
		room := thing.RoomName
		if room == "" {
			room = "-"
		}
		fmt.Fprintf(s.rl.Stdout(), "  %-18s %-45s %-22s %s\n",
			thing.Type, thing.DeviceID, thing.Name, room)
	}
}

func (s *Shell) cmdDiscover(ctx context.Context) {
	fmt.Fprintln(s.rl.Stdout(), "Browsing for controllers...")
	browser := discovery.NewBrowser(discovery.Config{})
	controllers, err := browser.Discover(ctx)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Discovery failed: %v\n", err)
		return
	}
	if len(controllers) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No controllers found")
		return
	}
	for _, c := range controllers {
		fmt.Fprintf(s.rl.Stdout(), "  %-16s %-20s %s\n", c.IPAddress, c.MacAddress, c.Generation)
	}
}

func (s *Shell) cmdRefresh(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: refresh <device> <channel>")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := s.bridge.RefreshChannel(ctx, args[0], args[1]); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Refresh failed: %v\n", err)
	}
}

func (s *Shell) cmdSimple(ctx context.Context, args []string, channel string, cmd services.Command) {
	if len(args) != 1 {
		fmt.Fprintf(s.rl.Stdout(), "Usage: %s <device>\n", cmd.Action)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := s.bridge.HandleCommand(ctx, args[0], channel, cmd); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Command failed: %v\n", err)
	}
}

func (s *Shell) cmdSet(ctx context.Context, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: set <device> <channel> <value> [unit]")
		return
	}
	value, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid value %q: %v\n", args[2], err)
		return
	}
	unit := services.Unit("")
	if len(args) > 3 {
		unit = services.Unit(args[3])
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := s.bridge.HandleCommand(ctx, args[0], args[1], services.Set(value, unit)); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Command failed: %v\n", err)
	}
}
