// Package frontend connects an emulator to a host display and keyboard.
package frontend
