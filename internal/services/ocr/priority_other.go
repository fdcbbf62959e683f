//go:build !unix

package ocr

func lowerPriority(int) error { return nil }
