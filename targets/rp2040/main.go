//go:build rp2040

package main

import (
	"device/rp"
	"machine"
	"runtime/interrupt"
	"time"

	"burstgen/core"
	"burstgen/targets/link"
)

// GPIO2 carries the burst output
const burstPin = machine.GPIO2

var (
	generator *core.Generator
	bridge    *core.IRQBridge
)

func main() {
	// Disable the watchdog left running by a previous reset
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	initDebugUART()

	timer := NewPIOTimer(0, burstPin)
	if err := timer.Init(); err != nil {
		blinkError()
	}

	generator = core.NewGenerator(timer)
	bridge = core.NewIRQBridge(timer)
	bridge.Register(generator.OnBurstComplete)

	irq := interrupt.New(rp.IRQ_PIO0_IRQ_0, handlePIOInterrupt)
	irq.SetPriority(0x00)
	irq.Enable()

	fw := core.NewFirmware(generator, "rp2040")
	link.New(fw, link.Board{
		Clock: hardwareClock,
		Reset: watchdogReset,
	}).Run()
}

func handlePIOInterrupt(interrupt.Interrupt) {
	bridge.Handle()
}

// watchdogReset reboots through the watchdog, which re-enumerates USB
// more reliably than SYSRESETREQ.
func watchdogReset() {
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
	if err != nil {
		return
	}
	if err := machine.Watchdog.Start(); err != nil {
		return
	}
	for {
		time.Sleep(time.Millisecond)
	}
}

func blinkError() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
