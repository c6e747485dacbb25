// Firma XAdES-BES nativa (sin JVM) para comprobantes del SRI.
// Inyecta <ds:Signature> enveloped como último hijo de <factura>.

package signer

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

// Namespaces y algoritmos XMLDSig / XAdES exigidos por el SRI (SHA-1).
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES     = "http://uri.etsi.org/01903/v1.3.2#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA1         = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgSHA1            = "http://www.w3.org/2000/09/xmldsig#sha1"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	signedPropsType    = "http://uri.etsi.org/01903#SignedProperties"
)

// XadesSigner implementa pkgsri.Signer firmando en proceso con el .p12.
type XadesSigner struct {
	keys *KeyPair
	now  func() time.Time
}

var _ pkgsri.Signer = (*XadesSigner)(nil)

// NewXadesSigner carga el certificado (base64 o ruta) y lo abre con la clave.
func NewXadesSigner(credentialBase64, credentialPath, password string) (*XadesSigner, error) {
	data, err := LoadCredential(credentialBase64, credentialPath)
	if err != nil {
		return nil, err
	}
	keys, err := DecodeKeyPair(data, password)
	if err != nil {
		return nil, err
	}
	return NewXadesSignerWithKeys(keys), nil
}

// NewXadesSignerWithKeys firmador con llaves ya cargadas.
func NewXadesSignerWithKeys(keys *KeyPair) *XadesSigner {
	return &XadesSigner{keys: keys, now: time.Now}
}

// Sign firma el comprobante. La Reference apunta a #comprobante.
func (s *XadesSigner) Sign(ctx context.Context, document []byte, accessKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "cancelado", err)
	}
	if len(document) == 0 {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "XML vacío", nil)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(document); err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "parsear XML", err)
	}
	root := doc.Root()
	if root == nil || root.SelectAttrValue("id", "") != pkgsri.DocumentRootID {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, `falta id="comprobante" en la raíz`, nil)
	}

	ids := newSignatureIDs()

	// 1) Digest del comprobante (sin firma todavía: equivale al transform enveloped).
	rootXML, err := elementBytes(root)
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "serializar comprobante", err)
	}
	docDigest, err := digestCanonical(rootXML)
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "c14n comprobante", err)
	}

	// 2) SignedProperties y su digest.
	cert := s.keys.Cert
	certDigest := sha1.Sum(cert.Raw)
	signedProps := buildSignedProperties(ids, s.now(),
		base64.StdEncoding.EncodeToString(certDigest[:]), cert.Issuer.String(), cert.SerialNumber.String())
	propsDigest, err := digestCanonical([]byte(signedProps))
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "c14n SignedProperties", err)
	}

	// 3) SignedInfo firmado con RSA-SHA1.
	signedInfo := buildSignedInfo(ids, docDigest, propsDigest)
	canonicalInfo, err := canonicalize([]byte(signedInfo))
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "c14n SignedInfo", err)
	}
	hash := sha1.Sum(canonicalInfo)
	sigValue, err := rsa.SignPKCS1v15(rand.Reader, s.keys.Key, crypto.SHA1, hash[:])
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrCertificateCorrupt, "firmar SignedInfo", err)
	}

	signature := buildSignature(ids, signedInfo, base64.StdEncoding.EncodeToString(sigValue),
		base64.StdEncoding.EncodeToString(cert.Raw), signedProps)

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signature); err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "parsear Signature", err)
	}
	root.AddChild(sigDoc.Root())

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "serializar XML firmado", err)
	}
	return out, nil
}

type signatureIDs struct {
	signature, signedInfo, signedProps, reference, object string
}

func newSignatureIDs() signatureIDs {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	suffix := "100000"
	if err == nil {
		suffix = n.Add(n, big.NewInt(100000)).String()
	}
	return signatureIDs{
		signature:   "Signature" + suffix,
		signedInfo:  "Signature-SignedInfo" + suffix,
		signedProps: "Signature" + suffix + "-SignedProperties",
		reference:   "Reference-ID-" + suffix,
		object:      "Signature" + suffix + "-Object",
	}
}

func buildSignedProperties(ids signatureIDs, at time.Time, certDigestB64, issuer, serial string) string {
	var sb strings.Builder
	sb.WriteString(`<etsi:SignedProperties xmlns:ds="` + NamespaceDS + `" xmlns:etsi="` + NamespaceXAdES + `" Id="` + ids.signedProps + `">`)
	sb.WriteString(`<etsi:SignedSignatureProperties>`)
	sb.WriteString(`<etsi:SigningTime>` + at.Format("2006-01-02T15:04:05-07:00") + `</etsi:SigningTime>`)
	sb.WriteString(`<etsi:SigningCertificate><etsi:Cert><etsi:CertDigest>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + certDigestB64 + `</ds:DigestValue></etsi:CertDigest>`)
	sb.WriteString(`<etsi:IssuerSerial><ds:X509IssuerName>` + escapeXML(issuer) + `</ds:X509IssuerName>`)
	sb.WriteString(`<ds:X509SerialNumber>` + serial + `</ds:X509SerialNumber></etsi:IssuerSerial>`)
	sb.WriteString(`</etsi:Cert></etsi:SigningCertificate></etsi:SignedSignatureProperties>`)
	sb.WriteString(`<etsi:SignedDataObjectProperties><etsi:DataObjectFormat ObjectReference="#` + ids.reference + `">`)
	sb.WriteString(`<etsi:Description>contenido comprobante</etsi:Description><etsi:MimeType>text/xml</etsi:MimeType>`)
	sb.WriteString(`</etsi:DataObjectFormat></etsi:SignedDataObjectProperties>`)
	sb.WriteString(`</etsi:SignedProperties>`)
	return sb.String()
}

func buildSignedInfo(ids signatureIDs, docDigest, propsDigest string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `" xmlns:etsi="` + NamespaceXAdES + `" Id="` + ids.signedInfo + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"></ds:CanonicalizationMethod>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA1 + `"></ds:SignatureMethod>`)
	sb.WriteString(`<ds:Reference Id="SignedPropertiesID" Type="` + signedPropsType + `" URI="#` + ids.signedProps + `">`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + propsDigest + `</ds:DigestValue></ds:Reference>`)
	sb.WriteString(`<ds:Reference Id="` + ids.reference + `" URI="#` + pkgsri.DocumentRootID + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"></ds:Transform></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + docDigest + `</ds:DigestValue></ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func buildSignature(ids signatureIDs, signedInfo, sigValueB64, certB64, signedProps string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `" xmlns:etsi="` + NamespaceXAdES + `" Id="` + ids.signature + `">`)
	sb.WriteString(signedInfo)
	sb.WriteString(`<ds:SignatureValue>` + sigValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`<ds:Object Id="` + ids.object + `"><etsi:QualifyingProperties Target="#` + ids.signature + `">`)
	sb.WriteString(signedProps)
	sb.WriteString(`</etsi:QualifyingProperties></ds:Object>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

func elementBytes(el *etree.Element) ([]byte, error) {
	d := etree.NewDocument()
	d.SetRoot(el.Copy())
	return d.WriteToBytes()
}

func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func digestCanonical(data []byte) (string, error) {
	canonical, err := canonicalize(data)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(canonical)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func escapeXML(s string) string {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}

// VerifyDocumentDigest recalcula el digest de #comprobante sin la firma y lo
// compara con el DigestValue de la Reference. Uso en diagnóstico y tests.
func VerifyDocumentDigest(signed []byte) (bool, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signed); err != nil {
		return false, err
	}
	root := doc.Root()
	if root == nil {
		return false, fmt.Errorf("documento sin raíz")
	}
	sig := root.SelectElement("ds:Signature")
	if sig == nil {
		return false, fmt.Errorf("sin ds:Signature")
	}
	var want string
	for _, ref := range sig.FindElements("./ds:SignedInfo/ds:Reference") {
		if ref.SelectAttrValue("URI", "") == "#"+pkgsri.DocumentRootID {
			if dv := ref.SelectElement("ds:DigestValue"); dv != nil {
				want = dv.Text()
			}
		}
	}
	root.RemoveChild(sig)
	raw, err := elementBytes(root)
	if err != nil {
		return false, err
	}
	got, err := digestCanonical(raw)
	if err != nil {
		return false, err
	}
	return got == want, nil
}
