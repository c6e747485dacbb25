// Resolución y verificación forense del certificado de firma (.p12).

package signer

import (
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pkcs12"

	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

// MinCredentialSize un PKCS#12 real nunca pesa menos de 1 KB.
const MinCredentialSize = 1024

// CleanBase64 quita comillas, saltos de línea y espacios, y repara el padding.
func CleanBase64(raw string) string {
	r := strings.NewReplacer(`"`, "", "'", "", "\r", "", "\n", "", " ", "", "\t", "")
	clean := r.Replace(strings.TrimSpace(raw))
	if missing := len(clean) % 4; missing != 0 {
		clean += strings.Repeat("=", 4-missing)
	}
	return clean
}

// DecodeCredential decodifica estrictamente el .p12 en base64 y verifica el contenedor.
func DecodeCredential(raw string) ([]byte, error) {
	data, err := base64.StdEncoding.Strict().DecodeString(CleanBase64(raw))
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrCertificateCorrupt, "SRI_FIRMA_BASE64 no es base64 válido", err)
	}
	if err := CheckContainer(data); err != nil {
		return nil, err
	}
	return data, nil
}

// CheckContainer tamaño mínimo y cabecera ASN.1 SEQUENCE (0x30 0x82).
func CheckContainer(data []byte) error {
	if len(data) < MinCredentialSize {
		return pkgsri.NewSigningError(pkgsri.ErrCertificateCorrupt,
			fmt.Sprintf("certificado sospechosamente pequeño (%d bytes)", len(data)), nil)
	}
	if data[0] != 0x30 || data[1] != 0x82 {
		return pkgsri.NewSigningError(pkgsri.ErrCertificateCorrupt,
			fmt.Sprintf("cabecera inválida %x, se esperaba 3082", data[:2]), nil)
	}
	return nil
}

// LoadCredential resuelve el certificado: base64 tiene prioridad sobre la ruta.
func LoadCredential(base64Value, path string) ([]byte, error) {
	if strings.TrimSpace(base64Value) != "" {
		return DecodeCredential(base64Value)
	}
	if path == "" {
		return nil, pkgsri.NewSigningError(pkgsri.ErrCertificateCorrupt, "no hay SRI_FIRMA_BASE64 ni SRI_FIRMA_PATH", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrCertificateCorrupt, "leer "+path, err)
	}
	if err := CheckContainer(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Fingerprint datos de auditoría del certificado.
type Fingerprint struct {
	SHA256    string
	HexPrefix string // primeros 16 bytes
	HexSuffix string // últimos 16 bytes
	Size      int
}

// FingerprintOf calcula la huella forense.
func FingerprintOf(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	head, tail := data, data
	if len(head) > 16 {
		head = head[:16]
		tail = tail[len(tail)-16:]
	}
	return Fingerprint{
		SHA256:    hex.EncodeToString(sum[:]),
		HexPrefix: hex.EncodeToString(head),
		HexSuffix: hex.EncodeToString(tail),
		Size:      len(data),
	}
}

// KeyPair llave RSA y certificado extraídos del .p12.
type KeyPair struct {
	Key  *rsa.PrivateKey
	Cert *x509.Certificate
}

// DecodeKeyPair abre el PKCS#12 con su clave. Los .p12 de las entidades
// certificadoras suelen traer la cadena completa; en ese caso se busca el
// certificado cuya llave pública corresponde a la llave privada.
func DecodeKeyPair(data []byte, password string) (*KeyPair, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		kp, chainErr := decodeChain(data, password)
		if chainErr != nil {
			return nil, pkgsri.NewSigningError(pkgsri.ErrCertificateCorrupt, "decodificar p12", err)
		}
		return kp, nil
	}
	key, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, pkgsri.NewSigningError(pkgsri.ErrCertificateCorrupt, "el certificado debe incluir llave privada RSA", nil)
	}
	return &KeyPair{Key: key, Cert: cert}, nil
}

func decodeChain(data []byte, password string) (*KeyPair, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, err
	}
	var key *rsa.PrivateKey
	var certs []*x509.Certificate
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY":
			if k, err := x509.ParsePKCS1PrivateKey(b.Bytes); err == nil {
				key = k
			}
		case "CERTIFICATE":
			if c, err := x509.ParseCertificate(b.Bytes); err == nil {
				certs = append(certs, c)
			}
		}
	}
	if key == nil {
		return nil, fmt.Errorf("p12 sin llave privada RSA")
	}
	for _, c := range certs {
		if pub, ok := c.PublicKey.(*rsa.PublicKey); ok && pub.N.Cmp(key.N) == 0 {
			return &KeyPair{Key: key, Cert: c}, nil
		}
	}
	return nil, fmt.Errorf("p12 sin certificado para la llave privada")
}

// writeSynced escribe y fuerza el vaciado a disco antes de entregar el archivo a otro proceso.
func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
