package crypto_test

import (
	"crypto/rand"
	"testing"

	"github.com/mossfield13/passctl/pkg/crypto"
)

// BenchmarkDeriveKey measures Argon2id key derivation performance.
// Expected: ~35ms on modern hardware with 64MB memory cost (OWASP recommended parameters).
func BenchmarkDeriveKey(b *testing.B) {
	password := []byte("testpassword123!")
	salt := make([]byte, crypto.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		b.Fatal(err)
	}
	params := crypto.DefaultParams()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		crypto.DeriveKey(password, salt, params)
	}
}

// BenchmarkExpandKey measures HKDF-SHA256 subkey expansion performance.
func BenchmarkExpandKey(b *testing.B) {
	master := make([]byte, crypto.KeyLength)
	if _, err := rand.Read(master); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := crypto.ExpandKey(master, crypto.InfoEntryKey); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSecureWipe measures secure memory wiping performance.
func BenchmarkSecureWipe(b *testing.B) {
	data := make([]byte, 1024) // 1KB
	b.ReportAllocs()
	b.SetBytes(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		crypto.SecureWipe(data)
	}
}

// Benchmark encryption with various payload sizes to measure throughput.

func BenchmarkEncrypt1KB(b *testing.B) {
	benchmarkEncrypt(b, 1024)
}

func BenchmarkEncrypt10KB(b *testing.B) {
	benchmarkEncrypt(b, 10*1024)
}

func BenchmarkEncrypt100KB(b *testing.B) {
	benchmarkEncrypt(b, 100*1024)
}

func BenchmarkEncrypt1MB(b *testing.B) {
	benchmarkEncrypt(b, 1024*1024)
}

func benchmarkEncrypt(b *testing.B, size int) {
	b.Helper()
	key := make([]byte, crypto.KeyLength)
	if _, err := rand.Read(key); err != nil {
		b.Fatal(err)
	}
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := crypto.Encrypt(key, data); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark decryption with various payload sizes to measure throughput.

func BenchmarkDecrypt1KB(b *testing.B) {
	benchmarkDecrypt(b, 1024)
}

func BenchmarkDecrypt10KB(b *testing.B) {
	benchmarkDecrypt(b, 10*1024)
}

func BenchmarkDecrypt100KB(b *testing.B) {
	benchmarkDecrypt(b, 100*1024)
}

func BenchmarkDecrypt1MB(b *testing.B) {
	benchmarkDecrypt(b, 1024*1024)
}

func benchmarkDecrypt(b *testing.B, size int) {
	b.Helper()
	key := make([]byte, crypto.KeyLength)
	if _, err := rand.Read(key); err != nil {
		b.Fatal(err)
	}
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		b.Fatal(err)
	}
	blob, err := crypto.Encrypt(key, data)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := crypto.Decrypt(key, blob); err != nil {
			b.Fatal(err)
		}
	}
}
