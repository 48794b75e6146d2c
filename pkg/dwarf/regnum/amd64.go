package regnum

import (
	"strings"
)

// The mapping between hardware registers and DWARF registers is specified
// in the System V ABI AMD64 Architecture Processor Supplement v. 1.0 page 61,
// figure 3.36
// https://gitlab.com/x86-psABIs/x86-64-ABI/-/tree/master

const (
	AMD64_Rax = 0
	AMD64_Rdx = 1
	AMD64_Rcx = 2
	AMD64_Rbx = 3
	AMD64_Rsi = 4
	AMD64_Rdi = 5
	AMD64_Rbp = 6
	AMD64_Rsp = 7
	AMD64_R8  = 8
	AMD64_R9  = 9
	AMD64_R10 = 10
	AMD64_R11 = 11
	AMD64_R12 = 12
	AMD64_R13 = 13
	AMD64_R14 = 14
	AMD64_R15 = 15
	AMD64_Rip = 16
)

var amd64NameToDwarf = func() map[string]int {
	r := map[string]int{
		"rax": AMD64_Rax,
		"rdx": AMD64_Rdx,
		"rcx": AMD64_Rcx,
		"rbx": AMD64_Rbx,
		"rsi": AMD64_Rsi,
		"rdi": AMD64_Rdi,
		"rbp": AMD64_Rbp,
		"rsp": AMD64_Rsp,
		"rip": AMD64_Rip,
	}
	for i := 8; i <= 15; i++ {
		r["r"+itoa(i)] = i
	}
	// 32-bit aliases share the DWARF number of the full register.
	for _, p := range [][2]string{
		{"eax", "rax"}, {"edx", "rdx"}, {"ecx", "rcx"}, {"ebx", "rbx"},
		{"esi", "rsi"}, {"edi", "rdi"}, {"ebp", "rbp"}, {"esp", "rsp"},
	} {
		r[p[0]] = r[p[1]]
	}
	return r
}()

// AMD64NameToDwarf returns the DWARF register number for an amd64
// register name, in any case.
func AMD64NameToDwarf(name string) (int, bool) {
	n, ok := amd64NameToDwarf[strings.ToLower(name)]
	return n, ok
}

func itoa(n int) string {
	if n < 10 {
		return string(rune('0' + n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
