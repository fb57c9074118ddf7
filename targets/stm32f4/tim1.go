//go:build stm32f4

package main

import (
	"device/stm32"
	"machine"
)

// ocModeToggle is OC1M = 011: toggle OC1REF when CNT matches CCR1.
const ocModeToggle = 0x3

// TIM1Timer drives the advanced-control timer TIM1 as a core.BurstTimer.
// CCR1 is 0 so channel 1 toggles once per counter period; the update
// event fires after RCR+1 periods.
type TIM1Timer struct {
	pin machine.Pin
}

// NewTIM1Timer returns the timer with its output on pin, which must be a
// TIM1_CH1 alternate function pin.
func NewTIM1Timer(pin machine.Pin) *TIM1Timer {
	return &TIM1Timer{pin: pin}
}

// Init clocks TIM1 at 1 MHz and sets up toggle mode on channel 1 with the
// counter and interrupt still off.
func (t *TIM1Timer) Init() {
	stm32.RCC.APB2ENR.SetBits(stm32.RCC_APB2ENR_TIM1EN)

	t.pin.ConfigureAltFunc(machine.PinConfig{Mode: machine.PinModePWMOutput}, machine.AF1_TIM1_2)

	tim := stm32.TIM1
	tim.CR1.Set(0)
	// APB2 timers run at the core clock
	tim.PSC.Set(machine.CPUFrequency()/1000000 - 1)
	tim.CCR1.Set(0)
	tim.CCMR1_Output.ReplaceBits(ocModeToggle<<stm32.TIM_CCMR1_Output_OC1M_Pos,
		stm32.TIM_CCMR1_Output_OC1M_Msk, 0)
	// Software updates load the registers without raising UIF
	tim.CR1.SetBits(stm32.TIM_CR1_URS)
}

func (t *TIM1Timer) SetReload(reload uint16) {
	stm32.TIM1.ARR.Set(uint32(reload))
}

func (t *TIM1Timer) SetRepetition(count uint8) {
	stm32.TIM1.RCR.Set(uint32(count))
}

// ForceUpdate sets EGR.UG, restarting the counter and latching RCR.
func (t *TIM1Timer) ForceUpdate() {
	stm32.TIM1.EGR.SetBits(stm32.TIM_EGR_UG)
}

func (t *TIM1Timer) StartCompareIT() {
	tim := stm32.TIM1
	tim.DIER.SetBits(stm32.TIM_DIER_UIE)
	tim.CCER.SetBits(stm32.TIM_CCER_CC1E)
	tim.BDTR.SetBits(stm32.TIM_BDTR_MOE)
	tim.CR1.SetBits(stm32.TIM_CR1_CEN)
}

func (t *TIM1Timer) StopCompareIT() {
	tim := stm32.TIM1
	tim.DIER.ClearBits(stm32.TIM_DIER_UIE)
	tim.CCER.ClearBits(stm32.TIM_CCER_CC1E)
	tim.BDTR.ClearBits(stm32.TIM_BDTR_MOE)
	tim.CR1.ClearBits(stm32.TIM_CR1_CEN)
}

func (t *TIM1Timer) UpdatePending() bool {
	tim := stm32.TIM1
	return tim.DIER.HasBits(stm32.TIM_DIER_UIE) && tim.SR.HasBits(stm32.TIM_SR_UIF)
}

// ClearUpdate writes zero to UIF only; SR bits are rc_w0.
func (t *TIM1Timer) ClearUpdate() {
	stm32.TIM1.SR.Set(^uint32(stm32.TIM_SR_UIF))
}
