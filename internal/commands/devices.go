// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextcloud/go_voice_bridge/internal/audio"
	"github.com/nextcloud/go_voice_bridge/internal/device"
	"github.com/nextcloud/go_voice_bridge/internal/device/portaudio"
	"github.com/nextcloud/go_voice_bridge/internal/service"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio devices and the roles they are configured for",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		host, err := portaudio.NewHost()
		if err != nil {
			return err
		}
		defer host.Terminate()

		infos, err := host.Devices()
		if err != nil {
			return err
		}
		printf(cmd, "%s\n", deviceTable(infos, cfg.DeviceKeys()))
		return nil
	},
}

// deviceTable renders infos, marking the roles whose configured key is the
// device's index or name.
func deviceTable(infos []device.Info, keys map[string]string) string {
	rows := make([][]string, 0, len(infos))
	for _, d := range infos {
		var roles []string
		for _, role := range device.AllRoles {
			key, ok := keys[role.String()]
			if ok && (key == strconv.Itoa(d.Index) || strings.EqualFold(key, d.Name)) {
				roles = append(roles, role.String())
			}
		}
		rows = append(rows, []string{
			strconv.Itoa(d.Index),
			d.Name,
			d.HostAPI,
			strconv.Itoa(d.MaxInputChannels),
			strconv.Itoa(d.MaxOutputChannels),
			fmt.Sprintf("%.0f", d.DefaultSampleRate),
			strings.Join(roles, ", "),
		})
	}
	return renderTable(
		[]string{"#", "Name", "Host API", "In", "Out", "Rate", "Role"},
		rows,
		func(row int) bool { return rows[row][6] == "" },
	)
}

var (
	testDeviceName string
	testDeviceWAV  string
)

var testDeviceCmd = &cobra.Command{
	Use:   "test-device <role>",
	Short: "Play a test tone on a playback role or meter a capture role",
	Long: `Check a device before a session.

Playback roles (virtual_out, speaker) play a one second 440 Hz tone, or the
file given with --wav. Capture roles (mic, virtual_in) are read for one
second and the average input level is printed.

The device is the one configured for the role unless --device is given.`,
	Example: `  voicebridge test-device speaker
  voicebridge test-device virtual_out --wav hello.wav
  voicebridge test-device mic --device "USB Microphone"`,
	Args: cobra.ExactArgs(1),
	RunE: runTestDevice,
}

func init() {
	testDeviceCmd.Flags().StringVarP(&testDeviceName, "device", "d", "", "device index or name")
	testDeviceCmd.Flags().StringVar(&testDeviceWAV, "wav", "", "16-bit wav file to play instead of the tone")
}

func runTestDevice(cmd *cobra.Command, args []string) error {
	role, err := device.ParseRole(args[0])
	if err != nil {
		return err
	}
	key := testDeviceName
	if key == "" {
		key = cfg.DeviceKeys()[role.String()]
	}
	if key == "" {
		return fmt.Errorf("%w: no device configured for %s, use --device", service.ErrMissingDevice, role)
	}

	host, err := portaudio.NewHost()
	if err != nil {
		return err
	}
	// Device tests need no recognition or synthesis.
	orch := service.NewOrchestrator(service.Deps{Registry: device.NewRegistry(host)})
	defer orch.Cleanup()

	b, err := orch.Bind(role, key)
	if err != nil {
		return err
	}

	if testDeviceWAV != "" {
		if role.IsCapture() {
			return fmt.Errorf("--wav needs a playback role, got %s", role)
		}
		return playWAV(cmd, b, testDeviceWAV)
	}

	res, err := orch.TestDevice(cmd.Context(), role)
	if err != nil {
		return err
	}
	switch res.Kind {
	case "level":
		printf(cmd, "%s (%s): average level %.0f\n", res.Role, res.Device, res.Level)
	default:
		printf(cmd, "%s (%s): test tone played\n", res.Role, res.Device)
	}
	return nil
}

func playWAV(cmd *cobra.Command, b *device.Binding, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pcm, rate, err := audio.ReadWAV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := b.Write(audio.Resample(pcm, rate, b.NativeSampleRate())); err != nil {
		return fmt.Errorf("playing %s: %w", path, err)
	}
	printf(cmd, "%s (%s): played %s (%s)\n", b.Role(), b.DeviceName(), path, audio.Duration(len(pcm), rate))
	return nil
}
