// certcheck diagnostica el certificado de firma (.p12) tal como lo verá el firmador.
//
//	go run ./cmd/certcheck                     # usa SRI_FIRMA_BASE64 / SRI_FIRMA_PATH / SRI_FIRMA_CLAVE
//	go run ./cmd/certcheck -path firma.p12 -pass 123456
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/cobros-sri/internal/infrastructure/sri/signer"
	"github.com/jhoicas/cobros-sri/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cargar configuración: %v\n", err)
		os.Exit(1)
	}

	path := flag.String("path", cfg.Signer.CredentialPath, "ruta del .p12 (se ignora si hay base64)")
	b64 := flag.String("base64", cfg.Signer.CredentialBase64, "certificado en base64")
	pass := flag.String("pass", cfg.Signer.Password, "clave del certificado")
	flag.Parse()

	fmt.Println("DIAGNÓSTICO DE CERTIFICADO SRI")
	fmt.Println("------------------------------")
	if *b64 != "" {
		fmt.Printf("Origen: base64 (%d caracteres)\n", len(*b64))
	} else {
		fmt.Printf("Origen: %s\n", *path)
	}

	// 1. Lectura y forma del contenedor
	data, err := signer.LoadCredential(*b64, *path)
	if err != nil {
		fmt.Println("\nERROR DE ARCHIVO O BASE64:")
		fmt.Printf("   %v\n", err)
		os.Exit(1)
	}
	fp := signer.FingerprintOf(data)
	fmt.Printf("Tamaño:      %d bytes\n", fp.Size)
	fmt.Printf("SHA-256:     %s\n", fp.SHA256)
	fmt.Printf("Inicio hex:  %s\n", fp.HexPrefix)
	fmt.Printf("Final hex:   %s\n", fp.HexSuffix)

	// 2. Clave y llave privada
	fmt.Println("\nDecodificando PKCS#12 con la clave...")
	kp, err := signer.DecodeKeyPair(data, *pass)
	if err != nil {
		fmt.Println("\nERROR DE CLAVE O FORMATO:")
		fmt.Printf("   %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Titular:     %s\n", kp.Cert.Subject.CommonName)
	fmt.Printf("Emisor:      %s\n", kp.Cert.Issuer.CommonName)
	fmt.Printf("Vigencia:    %s a %s\n", kp.Cert.NotBefore.Format("2006-01-02"), kp.Cert.NotAfter.Format("2006-01-02"))
	fmt.Printf("Llave RSA:   %d bits\n", kp.Key.N.BitLen())

	fmt.Println("\nOK: el certificado y la clave son correctos.")
}
