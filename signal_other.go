//go:build !unix

package av

func ignoreSIGPIPE() {}
