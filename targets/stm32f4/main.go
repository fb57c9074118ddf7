//go:build stm32f4

package main

import (
	"device/arm"
	"device/stm32"
	"machine"
	"runtime/interrupt"

	"burstgen/core"
	"burstgen/targets/link"
)

// PA8 is TIM1_CH1
const burstPin = machine.PA8

var (
	generator *core.Generator
	bridge    *core.IRQBridge
)

func main() {
	initClock()

	timer := NewTIM1Timer(burstPin)
	timer.Init()

	generator = core.NewGenerator(timer)
	bridge = core.NewIRQBridge(timer)
	bridge.Register(generator.OnBurstComplete)

	// TIM10 shares the vector; the bridge filters on TIM1's update flag
	irq := interrupt.New(stm32.IRQ_TIM1_UP_TIM10, handleTIM1Update)
	irq.SetPriority(0x00)
	irq.Enable()

	fw := core.NewFirmware(generator, "stm32f407")
	link.New(fw, link.Board{
		Clock: hardwareClock,
		Reset: arm.SystemReset,
	}).Run()
}

func handleTIM1Update(interrupt.Interrupt) {
	bridge.Handle()
}
