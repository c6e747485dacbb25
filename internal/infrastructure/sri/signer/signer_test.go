package signer_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cobros-sri/internal/infrastructure/sri/signer"
	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

const accessKey = "0102202401179001234500110010010000001231234567819"

const unsigned = `<?xml version="1.0" encoding="UTF-8"?><factura id="comprobante" version="1.1.0"><infoTributaria><claveAcceso>` +
	accessKey + `</claveAcceso></infoTributaria></factura>`

// fakeP12 bytes con cabecera ASN.1 válida y tamaño plausible.
func fakeP12() []byte {
	data := make([]byte, 2048)
	data[0], data[1] = 0x30, 0x82
	for i := 2; i < len(data); i++ {
		data[i] = byte(i)
	}
	return data
}

// ── Certificado ──────────────────────────────────────────────────────────────

func TestCleanBase64_ReparaPadding(t *testing.T) {
	assert.Equal(t, "QUJD", signer.CleanBase64(`"QU JD"`))
	assert.Equal(t, "QUI=", signer.CleanBase64("QUI\r\n"))
	assert.Equal(t, "QQ==", signer.CleanBase64(" QQ "))
}

func TestDecodeCredential(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString(fakeP12())
	// con basura típica de variables de entorno y sin padding
	dirty := `"` + strings.TrimRight(raw[:100]+"\n"+raw[100:], "=") + `"`
	data, err := signer.DecodeCredential(dirty)
	require.NoError(t, err)
	assert.Equal(t, fakeP12(), data)
}

func TestDecodeCredential_Corrupto(t *testing.T) {
	_, err := signer.DecodeCredential("@@@no-es-base64@@@")
	assert.True(t, errors.Is(err, pkgsri.ErrCertificateCorrupt))

	small := base64.StdEncoding.EncodeToString([]byte{0x30, 0x82, 0x01})
	_, err = signer.DecodeCredential(small)
	assert.True(t, errors.Is(err, pkgsri.ErrCertificateCorrupt))

	bad := fakeP12()
	bad[0] = 0x50
	_, err = signer.DecodeCredential(base64.StdEncoding.EncodeToString(bad))
	assert.True(t, errors.Is(err, pkgsri.ErrCertificateCorrupt))
}

func TestLoadCredential_SinFuente(t *testing.T) {
	_, err := signer.LoadCredential("", "")
	assert.True(t, errors.Is(err, pkgsri.ErrCertificateCorrupt))
	_, err = signer.LoadCredential("", filepath.Join(t.TempDir(), "no-existe.p12"))
	assert.True(t, errors.Is(err, pkgsri.ErrCertificateCorrupt))
}

func TestFingerprintOf(t *testing.T) {
	fp := signer.FingerprintOf(fakeP12())
	assert.Len(t, fp.SHA256, 64)
	assert.True(t, strings.HasPrefix(fp.HexPrefix, "3082"))
	assert.Len(t, fp.HexPrefix, 32)
	assert.Equal(t, 2048, fp.Size)
}

// ── JarSigner con un "java" falso ────────────────────────────────────────────

func fakeJava(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requiere /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "java")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func newJarSigner(t *testing.T, java string, timeout time.Duration) (*signer.JarSigner, string) {
	tmp := t.TempDir()
	s := signer.NewJarSigner(signer.JarConfig{
		JavaBin:          java,
		JarPath:          "/opt/sri/sri.jar",
		CredentialBase64: base64.StdEncoding.EncodeToString(fakeP12()),
		Password:         "secreto",
		Timeout:          timeout,
		TempDir:          tmp,
	}, zerolog.Nop())
	return s, tmp
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "quedaron archivos temporales")
}

func TestJarSigner_Firma(t *testing.T) {
	// $3 p12, $4 clave, $5 entrada, $6 carpeta salida, $7 nombre salida
	java := fakeJava(t, `test -s "$3" || exit 3
test "$4" = "secreto" || exit 4
sed 's#</factura>#<ds:Signature/></factura>#' "$5" > "$6/$7"`)
	s, tmp := newJarSigner(t, java, 5*time.Second)

	out, err := s.Sign(context.Background(), []byte(unsigned), accessKey)
	require.NoError(t, err)
	assert.Contains(t, string(out), "<ds:Signature/></factura>")
	assertEmptyDir(t, tmp)
}

func TestJarSigner_Timeout(t *testing.T) {
	java := fakeJava(t, `exec sleep 5`)
	s, tmp := newJarSigner(t, java, 200*time.Millisecond)

	_, err := s.Sign(context.Background(), []byte(unsigned), accessKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgsri.ErrSigningTimeout))
	assertEmptyDir(t, tmp)
}

func TestJarSigner_ProcesoFallido(t *testing.T) {
	java := fakeJava(t, `echo "keystore password was incorrect" >&2
exit 1`)
	s, tmp := newJarSigner(t, java, 5*time.Second)

	_, err := s.Sign(context.Background(), []byte(unsigned), accessKey)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgsri.ErrSigningProcessFailed))
	assert.Contains(t, err.Error(), "keystore password was incorrect")
	assertEmptyDir(t, tmp)
}

func TestJarSigner_SalidaDeErrorTruncada(t *testing.T) {
	java := fakeJava(t, `i=0
while [ $i -lt 200 ]; do printf 'java.lang.Exception at line %04d ' $i >&2; i=$((i+1)); done
exit 1`)
	s, tmp := newJarSigner(t, java, 5*time.Second)

	_, err := s.Sign(context.Background(), []byte(unsigned), accessKey)
	require.Error(t, err)
	var se *pkgsri.SigningError
	require.True(t, errors.As(err, &se))
	assert.True(t, strings.HasPrefix(se.Detail, "java.lang.Exception at line 0000"))
	assert.LessOrEqual(t, len(se.Detail), 500)
	assert.NotContains(t, err.Error(), "line 0199")
	assertEmptyDir(t, tmp)
}

func TestJarSigner_SinArchivoDeSalida(t *testing.T) {
	java := fakeJava(t, `echo ok`)
	s, tmp := newJarSigner(t, java, 5*time.Second)

	_, err := s.Sign(context.Background(), []byte(unsigned), accessKey)
	assert.True(t, errors.Is(err, pkgsri.ErrSigningProcessFailed))
	assertEmptyDir(t, tmp)
}

func TestJarSigner_CertificadoCorrupto(t *testing.T) {
	java := fakeJava(t, `exit 0`)
	s := signer.NewJarSigner(signer.JarConfig{
		JavaBin:          java,
		CredentialBase64: "basura",
		TempDir:          t.TempDir(),
	}, zerolog.Nop())
	_, err := s.Sign(context.Background(), []byte(unsigned), accessKey)
	assert.True(t, errors.Is(err, pkgsri.ErrCertificateCorrupt))
}

// ── XadesSigner ──────────────────────────────────────────────────────────────

func selfSigned(t *testing.T) *signer.KeyPair {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(4242),
		Subject:      pkix.Name{CommonName: "JUNTA DE AGUA PRUEBAS"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &signer.KeyPair{Key: key, Cert: cert}
}

func TestXadesSigner_FirmaEnveloped(t *testing.T) {
	s := signer.NewXadesSignerWithKeys(selfSigned(t))
	out, err := s.Sign(context.Background(), []byte(unsigned), accessKey)
	require.NoError(t, err)

	xml := string(out)
	assert.Contains(t, xml, `URI="#comprobante"`)
	assert.Contains(t, xml, signer.AlgRSASHA1)
	assert.Contains(t, xml, "<etsi:SigningTime>")
	assert.True(t, strings.Index(xml, "<ds:Signature") > strings.Index(xml, "</infoTributaria>"))

	ok, err := signer.VerifyDocumentDigest(out)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestXadesSigner_SinIDComprobante(t *testing.T) {
	s := signer.NewXadesSignerWithKeys(selfSigned(t))
	_, err := s.Sign(context.Background(), []byte(`<factura/>`), accessKey)
	assert.True(t, errors.Is(err, pkgsri.ErrSigningProcessFailed))
}
