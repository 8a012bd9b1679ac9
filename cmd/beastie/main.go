// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// beastie directly reboots a Linux host into a FreeBSD kernel staged on
// disk, via kexec, without a separate boot loader stage. Mirrors
// original_source/main.cxx.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/philmb3487/beastie-boot/pkg/bootbuf"
	"github.com/philmb3487/beastie-boot/pkg/bootloader"
	"github.com/philmb3487/beastie-boot/pkg/log"
)

const progName = "beastie"
const progVers = "0.1"

type options struct {
	Version bool `short:"v" long:"version" description:"Print the version of beastie."`
	Pretend bool `short:"p" long:"pretend" description:"Pretend to reboot."`
	Force   bool `short:"f" long:"force" description:"Force an immediate boot, don't call shutdown."`
	Debug   bool `short:"d" long:"debug" description:"Enable debugging to help spot a failure."`
	DebugAsm bool `short:"D" long:"debug-asm" description:"Enable debugging disassembler."`
	Cdrom   bool `short:"c" long:"cdrom" description:"Boot in cdrom mode."`
	Serial  bool `short:"s" long:"serial" description:"Boot in serial mode."`
	Verbose bool `short:"V" long:"verbose" description:"Boot in verbose mode."`

	Positional struct {
		Root string `positional-arg-name:"root" description:"Root of the FreeBSD install to boot."`
	} `positional-args:"yes"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		switch err.(type) {
		case bootloader.UsageError:
			os.Exit(-1)
		default:
			os.Exit(1)
		}
	}
}

func run() error {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return bootloader.UsageError{}
	}

	if opts.Version {
		fmt.Printf("%s v%s\n", progName, progVers)
		return nil
	}

	if opts.Positional.Root == "" {
		parser.WriteHelp(os.Stdout)
		return bootloader.UsageError{}
	}

	if os.Geteuid() != 0 {
		return bootloader.PrivilegeError{}
	}

	howto := uint32(0)
	if opts.Cdrom {
		howto |= bootbuf.RBCdrom
	}
	if opts.Serial {
		howto |= bootbuf.RBMultiple
		howto |= bootbuf.RBSerial
	}
	if opts.Verbose {
		howto |= bootbuf.RBVerbose
	}

	log.SetVerbose(opts.Debug || opts.DebugAsm)
	log.Debugf("boot_howto=0x%x", howto)

	bl, err := bootloader.New()
	if err != nil {
		return err
	}
	// Boot() only returns on failure: a successful kexec hands off to
	// shutdown(8) or unix.Reboot, neither of which returns to this process.
	// This defer therefore only fires on the non-reboot paths (--pretend, an
	// early error), exactly the exception spec.md's resource model carves
	// out for the final unload.
	defer func() {
		if err := bl.Unload(); err != nil {
			log.Warnf("final unload failed: %v", err)
		}
	}()
	bl.SetDebug(opts.Debug || opts.DebugAsm)
	bl.SetHowto(howto)
	bl.SetForce(opts.Force)

	root := opts.Positional.Root
	if err := bl.FontLoad(filepath.Join(root, "boot/fonts/12x24.fnt.gz")); err != nil {
		return err
	}
	if err := bl.FileLoad(filepath.Join(root, "boot/kernel/kernel")); err != nil {
		return err
	}
	if opts.DebugAsm {
		bl.DebugDump(os.Stderr)
	}

	if opts.Pretend {
		return nil
	}
	return bl.Boot()
}
