// Command axebergcored boots the kernel core, wires in the host adapters
// (clock, console, snapshot store), and drives it with a repeated Tick
// loop, logging through logrus the way the kernel's Tracer does.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/axeberg/axebergos-sub000/pkg/hostadapter"
	"github.com/axeberg/axebergos-sub000/pkg/kernel"
	"github.com/axeberg/axebergos-sub000/pkg/syntheticfs"
	"github.com/axeberg/axebergos-sub000/pkg/syscall"
	"github.com/axeberg/axebergos-sub000/pkg/vfs"
)

func main() {
	configPath := flag.String("config", "", "path to a boot.toml config file (optional)")
	tickInterval := flag.Duration("tick", 16*time.Millisecond, "host frame interval")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg := hostadapter.DefaultBootConfig()
	if *configPath != "" {
		loaded, err := hostadapter.LoadBootConfig(*configPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load boot config")
		}
		cfg = loaded
	}

	memLimit := cfg.MemoryLimit
	k := kernel.Init(kernel.Config{Log: log, MemoryLimit: &memLimit})
	k.Tracer.SetEnabled(cfg.TraceEnabled)

	lowerFS := vfs.NewMemoryFS()
	upperFS := vfs.NewMemoryFS()
	root := vfs.NewLayeredFS(lowerFS, upperFS)
	seedLayout(lowerFS, log)

	clock := hostadapter.NewClock()
	synth := syntheticfs.New(k, clock, cfg.Hostname)
	dispatcher := syscall.New(k, root, synth)

	store := hostadapter.NewStore(cfg.SnapshotDir + "/axebergos.snapshot")
	if snap, ok, err := store.Load(context.Background()); err != nil {
		log.WithError(err).Warn("failed to load prior snapshot, starting empty")
	} else if ok {
		restored, err := vfs.RestoreFromJSON(snap)
		if err != nil {
			log.WithError(err).Warn("snapshot restore failed, starting empty")
		} else {
			lowerFS = restored
			root = vfs.NewLayeredFS(lowerFS, upperFS)
			dispatcher = syscall.New(k, root, synth)
			log.Info("restored filesystem snapshot")
		}
	}

	init0, err := k.SpawnInitProcess("init")
	if err != nil {
		log.WithError(err).Fatal("failed to spawn init process")
	}
	log.WithField("pid", init0.Pid).Info("init process spawned")

	runMotdDemo(dispatcher, init0.Pid, log)

	var hostConsole *hostadapter.Console
	if c, err := hostadapter.NewConsole(os.Stdin, k); err == nil {
		hostConsole = c
		defer hostConsole.Close()
		go func() {
			if err := hostConsole.PumpInput(); err != nil {
				log.WithError(err).Warn("console input pump stopped")
			}
		}()
	}

	boot := time.Now()
	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := float64(time.Since(boot)) / float64(time.Millisecond)
		k.Tick(now)

		if hostConsole != nil {
			hostConsole.SyncWinsize()
			hostConsole.FlushOutput(os.Stdout)
		}

		if !k.Executor.HasTasks() && len(k.Processes.All()) == 0 {
			break
		}
	}

	if snap, err := lowerFS.ToJSON(); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), hostadapter.DefaultBackoffTimeout)
		defer cancel()
		if err := store.Save(ctx, snap); err != nil {
			log.WithError(err).Error("failed to persist snapshot on shutdown")
		}
	}
}

// seedLayout populates the lower, read-only layer with the baseline
// directory structure spec.md's synthetic filesystems assume exist
// alongside them (/proc, /dev, /sys are intercepted before reaching here;
// this only needs to cover ordinary VFS paths).
func seedLayout(fs vfs.FileSystem, log logrus.FieldLogger) {
	for _, dir := range []string{"/bin", "/etc", "/home", "/tmp", "/var"} {
		if err := fs.CreateDir(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("failed to seed directory")
		}
	}
}

// runMotdDemo exercises the syscall surface end to end: it writes
// /etc/motd through the dispatcher exactly as a user-space program would,
// proving the open/write/close path (and its VFS write-back) works before
// any real shell exists to drive it.
func runMotdDemo(d *syscall.Dispatcher, pid kernel.Pid, log logrus.FieldLogger) {
	fd, err := d.Open(pid, "/etc/motd", vfs.OpenOptions{Write: true, Create: true, Truncate: true})
	if err != nil {
		log.WithError(err).Warn("motd demo: open failed")
		return
	}
	if _, err := d.Write(pid, fd, []byte("welcome to axebergos\n")); err != nil {
		log.WithError(err).Warn("motd demo: write failed")
	}
	if err := d.Close(pid, fd); err != nil {
		log.WithError(err).Warn("motd demo: close failed")
	}
}
