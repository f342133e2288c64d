package utils

import (
	"os"
	"path/filepath"

	json "github.com/json-iterator/go"
)

func Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// CreateTempFile creates an empty file next to path so that a later
// os.Rename over path stays on the same filesystem.
func CreateTempFile(path, pattern string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.CreateTemp(dir, pattern)
}

// ReplaceFile moves tmp over dst, removing tmp if the rename fails.
func ReplaceFile(tmp, dst string) error {
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// WriteJsonToFile writes src as indented json into dst
func WriteJsonToFile(dst string, data interface{}) bool {
	str, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		Log.Errorf("failed convert Conf to []byte:%s", err.Error())
		return false
	}
	if err = os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
		Log.Errorf("failed to create config dir:%s", err.Error())
		return false
	}
	err = os.WriteFile(dst, str, 0777)
	if err != nil {
		Log.Errorf("failed to write json file:%s", err.Error())
		return false
	}
	return true
}
