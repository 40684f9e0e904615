// Package device provides the audio and keypad collaborators of the
// CHIP-8 emulator: sound triggers that render the buzzer tone, and the
// mapping of physical keys onto the 16 logical keys.
package device
