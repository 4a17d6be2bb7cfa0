package testing

import (
	"math/rand"
	"strings"
)

// RandString returns a random 12-character string for unique test fixtures
func RandString() string {
	var out strings.Builder
	charSet := "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	length := 12
	for i := 0; i < length; i++ {
		out.WriteByte(charSet[rand.Intn(len(charSet))])
	}
	return out.String()
}

// RandPhone returns a random phone-looking string
func RandPhone() string {
	var out strings.Builder
	out.WriteString("+1")
	for i := 0; i < 10; i++ {
		out.WriteByte(byte('0' + rand.Intn(10)))
	}
	return out.String()
}
