// cortex-probe is a field debugging tool: it scans for one advertising node,
// subscribes to its telemetry characteristic and pretty-prints every decoded
// record. Useful for checking a node without the full hub stack running.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/rushilpunu/cortex/internal/packet"
	"github.com/rushilpunu/cortex/internal/transport"
)

func main() {
	var (
		adapterID = flag.String("adapter", "hci0", "bluetooth adapter to use")
		addrFlag  = flag.String("addr", "", "connect to this address instead of the strongest match")
		scanFor   = flag.Duration("scan", 15*time.Second, "how long to scan before giving up")
		count     = flag.Int("count", 0, "stop after this many records (0 = run until interrupted)")
	)
	flag.Parse()

	if err := run(*adapterID, *addrFlag, *scanFor, *count); err != nil {
		fmt.Fprintf(os.Stderr, "cortex-probe: %v\n", err)
		os.Exit(1)
	}
}

func run(adapterID, addrWanted string, scanFor time.Duration, count int) error {
	svcUUID, err := bluetooth.ParseUUID(transport.ServiceUUID)
	if err != nil {
		return err
	}
	charUUID, err := bluetooth.ParseUUID(transport.CharacteristicUUID)
	if err != nil {
		return err
	}

	adapter := bluetooth.NewAdapter(adapterID)
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("enable %s: %w", adapterID, err)
	}

	fmt.Printf("scanning on %s for up to %s...\n", adapterID, scanFor)
	result, err := scan(adapter, svcUUID, addrWanted, scanFor)
	if err != nil {
		return err
	}
	fmt.Printf("found %s (%q, rssi %d), connecting...\n",
		result.Address.String(), result.LocalName(), result.RSSI)

	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = device.Disconnect() }()

	services, err := device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil || len(services) == 0 {
		return fmt.Errorf("discover service: %w", err)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{charUUID})
	if err != nil || len(chars) == 0 {
		return fmt.Errorf("discover characteristic: %w", err)
	}

	records := make(chan []byte, 8)
	if err := chars[0].EnableNotifications(func(buf []byte) {
		b := make([]byte, len(buf))
		copy(b, buf)
		select {
		case records <- b:
		default:
		}
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	fmt.Println("subscribed, waiting for records (ctrl-c to stop)")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var prev uint16
	seenAny := false
	received := 0
	for {
		select {
		case <-stop:
			return nil
		case buf := <-records:
			rec, err := packet.Decode(buf)
			if err != nil {
				fmt.Printf("!! bad record (%d bytes): %v\n", len(buf), err)
				continue
			}
			printRecord(rec)
			if seenAny {
				if gap := packet.SeqGap(prev, rec.Seq); gap > 1 {
					fmt.Printf("!! %d record(s) lost before seq %d\n", gap-1, rec.Seq)
				}
			}
			prev, seenAny = rec.Seq, true
			received++
			if count > 0 && received >= count {
				return nil
			}
		}
	}
}

func scan(adapter *bluetooth.Adapter, svcUUID bluetooth.UUID, addrWanted string, scanFor time.Duration) (bluetooth.ScanResult, error) {
	var (
		best  bluetooth.ScanResult
		found bool
	)

	done := make(chan struct{})
	go func() {
		select {
		case <-time.After(scanFor):
		case <-done:
			return
		}
		_ = adapter.StopScan()
	}()

	err := adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		if !r.HasServiceUUID(svcUUID) {
			return
		}
		if addrWanted != "" {
			if strings.EqualFold(r.Address.String(), addrWanted) {
				best, found = r, true
				_ = a.StopScan()
			}
			return
		}
		if !found || r.RSSI > best.RSSI {
			best, found = r, true
		}
	})
	close(done)
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("scan: %w", err)
	}
	if !found {
		return bluetooth.ScanResult{}, fmt.Errorf("no advertising node found within %s", scanFor)
	}
	return best, nil
}

func printRecord(rec *packet.Record) {
	fmt.Printf("node=%d seq=%d t=%dms temp=%s°C rh=%s%% p=%shPa lux=%s accel=%sg sound=%sdBFS\n",
		rec.NodeID, rec.Seq, rec.TMs,
		field(rec.TempC), field(rec.RHPct), field(rec.PressureHPa),
		field(rec.Lux), field(rec.AccelG), field(rec.SoundDBFS))
}

// field renders the unavailable sentinel as "-" instead of NaN.
func field(v float32) string {
	if math.IsNaN(float64(v)) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
