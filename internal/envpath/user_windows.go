//go:build windows

package envpath

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

// UserStore returns the user environment kept in HKCU\Environment. The file
// arguments are unused on Windows.
func UserStore(string, string) EnvStore {
	return RegistryEnvStore{}
}

// RegistryEnvStore reads and writes HKCU\Environment.
type RegistryEnvStore struct{}

// Get implements EnvStore.
func (RegistryEnvStore) Get(key string) (string, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, `Environment`, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("open user environment: %w", err)
	}
	defer k.Close()

	value, _, err := k.GetStringValue(key)
	if errors.Is(err, registry.ErrNotExist) {
		return "", nil
	}
	return value, err
}

// Set implements EnvStore and notifies running programs of the change.
func (RegistryEnvStore) Set(key, value string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, `Environment`, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open user environment: %w", err)
	}
	defer k.Close()

	if value == "" {
		if err := k.DeleteValue(key); err != nil && !errors.Is(err, registry.ErrNotExist) {
			return err
		}
	} else if err := k.SetExpandStringValue(key, value); err != nil {
		return err
	}
	broadcastSettingChange()
	return nil
}

var sendMessageTimeout = windows.NewLazySystemDLL("user32.dll").NewProc("SendMessageTimeoutW")

func broadcastSettingChange() {
	const (
		hwndBroadcast   = 0xffff
		wmSettingChange = 0x001a
		smtoAbortIfHung = 0x0002
	)
	param, err := windows.UTF16PtrFromString("Environment")
	if err != nil {
		return
	}
	_, _, _ = sendMessageTimeout.Call(hwndBroadcast, wmSettingChange, 0,
		uintptr(unsafe.Pointer(param)), smtoAbortIfHung, 5000, 0)
}
