//go:build !linux && !windows

package process

type unsupportedTable struct{}

func systemTable() Table {
	return unsupportedTable{}
}

func (unsupportedTable) Scan(string) ([]Proc, error) {
	return nil, ErrUnsupportedPlatform
}
