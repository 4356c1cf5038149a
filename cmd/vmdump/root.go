package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vmkernel/kernel/mm"
	"vmkernel/kernel/mm/vmm"
	"vmkernel/kernel/process"
)

var (
	frameCount uint
	userPages  uint
	logLevel   string
)

func newRootCmd() *cobra.Command {
	log := logrus.New()

	cmd := &cobra.Command{
		Use:   "vmdump",
		Short: "Exercise the virtual memory core outside a booted kernel",
		Long: "vmdump drives the AddressSpace factory against a host-backed frame\n" +
			"allocator: it bootstraps a kernel address space, clones it for a user\n" +
			"process, maps a user range, and reports the translations and allocator\n" +
			"state at each step.",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(level)

			return run(log)
		},
	}

	cmd.Flags().UintVar(&frameCount, "frames", 4096, "number of 4 KiB frames the host allocator manages")
	cmd.Flags().UintVar(&userPages, "user-pages", 4, "number of pages to map into the cloned user space")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "logrus level: debug, info, warn, error")

	cmd.AddCommand(newMemMapCmd())

	return cmd
}

func run(log *logrus.Logger) error {
	alloc := newHostAllocator(frameCount)
	registry := &process.Registry{}
	factory := vmm.NewFactory(alloc, registry)

	log.WithField("allocator", alloc.Dump()).Info("host allocator ready")

	kernelSpace := factory.CreateAddressSpace()
	log.WithFields(logrus.Fields{
		"root":      formatAddr(kernelSpace.PageTableAddress()),
		"allocator": alloc.Dump(),
	}).Info("bootstrap kernel address space created")

	registry.SetKernelProcess(process.New(0, kernelSpace))

	userSpace := factory.CreateAddressSpace()
	log.WithField("root", formatAddr(userSpace.PageTableAddress())).Info("cloned user address space created")

	pages := mm.PageRange{Start: mm.PageFromAddress(0x4000_0000), End: mm.PageFromAddress(0x4000_0000) + mm.Page(userPages)}
	userSpace.Map(pages, vmm.User, vmm.FlagPresent|vmm.FlagWritable|vmm.FlagUserAccessible)

	for p := pages.Start; p < pages.End; p++ {
		addr := p.Address()
		if phys, ok := userSpace.Translate(addr); ok {
			log.WithFields(logrus.Fields{"virt": formatAddr(addr), "phys": formatAddr(phys)}).Info("translated")
		} else {
			log.WithField("virt", formatAddr(addr)).Warn("translation miss")
		}
	}

	log.WithField("allocator", alloc.Dump()).Info("final allocator state")
	return nil
}

func formatAddr(addr uintptr) string {
	return "0x" + itoaHex(uint64(addr))
}

func itoaHex(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xf]
		v >>= 4
	}
	return string(buf[i:])
}
