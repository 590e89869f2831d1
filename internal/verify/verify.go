// Package verify checks a built artifact before it is allowed near a remote
// host. A wrong-architecture binary on an embedded device is expensive to
// diagnose remotely; catching it locally is strictly cheaper.
//
// Checks, in order: the artifact is non-empty, it carries an execute bit,
// and — when the binary is ELF — its machine field matches the architecture
// component of the expected triple. Non-ELF formats do not expose the
// architecture cheaply, so the machine check degrades to a best-effort pass
// for them; this is deliberate, not an oversight.
package verify

import (
	"debug/elf"
	"os"
	"strings"

	"crossdeploy/internal/domain"
	"crossdeploy/internal/errdefs"
)

// Check verifies an artifact against the expected triple. Pure and local:
// it reads the artifact file and touches nothing else.
func Check(artifact domain.Artifact, expected domain.Triple) error {
	info, err := os.Stat(artifact.LocalPath)
	if err != nil {
		return errdefs.Wrap(err, errdefs.CodeIO, "stat artifact %s", artifact.LocalPath)
	}

	if info.Size() == 0 || artifact.SizeBytes == 0 {
		return errdefs.New(errdefs.CodeEmptyArtifact, "artifact %s is empty", artifact.LocalPath)
	}

	if info.Mode()&0o111 == 0 {
		return errdefs.New(errdefs.CodeNotExecutable, "artifact %s has no execute permission (mode %s)", artifact.LocalPath, info.Mode())
	}

	if artifact.Triple != expected {
		return errdefs.New(errdefs.CodeTripleMismatch, "artifact built for %s, expected %s", artifact.Triple, expected)
	}

	return checkMachine(artifact.LocalPath, expected)
}

// checkMachine compares the ELF machine field against the triple's
// architecture. Files that do not parse as ELF pass: the format does not
// expose the architecture cheaply and the contract documents this as
// best-effort.
func checkMachine(path string, expected domain.Triple) error {
	f, err := elf.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	want, known := machineForArch(expected.Arch())
	if !known {
		return nil
	}

	if f.Machine != want {
		return errdefs.New(errdefs.CodeTripleMismatch,
			"artifact %s has machine %s, triple %s expects %s", path, f.Machine, expected, want)
	}
	return nil
}

// machineForArch maps a triple architecture component to its ELF machine.
// Unknown architectures report !known and skip the check.
func machineForArch(arch string) (elf.Machine, bool) {
	switch arch {
	case "x86_64":
		return elf.EM_X86_64, true
	case "i386", "i486", "i586", "i686":
		return elf.EM_386, true
	case "aarch64", "arm64":
		return elf.EM_AARCH64, true
	case "riscv32", "riscv64":
		return elf.EM_RISCV, true
	case "mips", "mipsel", "mips64", "mips64el":
		return elf.EM_MIPS, true
	case "powerpc":
		return elf.EM_PPC, true
	case "powerpc64", "powerpc64le", "ppc64", "ppc64le":
		return elf.EM_PPC64, true
	case "s390x":
		return elf.EM_S390, true
	case "loongarch64":
		return elf.EM_LOONGARCH, true
	case "sparc64", "sparcv9":
		return elf.EM_SPARCV9, true
	}
	// armv5, armv6, armv7, armv7l and friends all map to 32-bit ARM.
	if strings.HasPrefix(arch, "arm") || strings.HasPrefix(arch, "thumb") {
		return elf.EM_ARM, true
	}
	return 0, false
}
