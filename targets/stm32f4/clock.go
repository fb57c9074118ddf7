//go:build stm32f4

package main

import (
	"device/stm32"
	"machine"
)

// initClock starts TIM2, a 32-bit timer, free running at 1 MHz as the
// protocol clock.
func initClock() {
	stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_TIM2EN)

	tim := stm32.TIM2
	tim.CR1.Set(0)
	// APB1 timers run at half the core clock
	tim.PSC.Set(machine.CPUFrequency()/2/1000000 - 1)
	tim.ARR.Set(0xFFFFFFFF)
	tim.EGR.SetBits(stm32.TIM_EGR_UG)
	tim.CR1.SetBits(stm32.TIM_CR1_CEN)
}

func hardwareClock() uint32 {
	return stm32.TIM2.CNT.Get()
}
