// Firma XAdES-BES delegada al firmador Java del SRI (sri.jar).

package signer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	pkgsri "github.com/jhoicas/cobros-sri/pkg/sri"
)

// DefaultSigningTimeout tope de reloj para el proceso externo.
const DefaultSigningTimeout = 25 * time.Second

const maxLoggedOutput = 500

// JarConfig parámetros del firmador externo.
type JarConfig struct {
	JavaBin          string // por defecto "java"
	JarPath          string
	CredentialBase64 string // SRI_FIRMA_BASE64, prioridad sobre CredentialPath
	CredentialPath   string // SRI_FIRMA_PATH
	Password         string
	Timeout          time.Duration
	TempDir          string // vacío = os.TempDir()
}

// JarSigner implementa pkgsri.Signer ejecutando `java -jar sri.jar`.
// Cada firma usa un directorio temporal propio que se elimina siempre.
type JarSigner struct {
	cfg    JarConfig
	logger zerolog.Logger
}

var _ pkgsri.Signer = (*JarSigner)(nil)

// NewJarSigner construye el firmador. No valida el certificado aquí: un
// certificado corrupto debe quedar registrado en la factura, no tumbar el proceso.
func NewJarSigner(cfg JarConfig, logger zerolog.Logger) *JarSigner {
	if cfg.JavaBin == "" {
		cfg.JavaBin = "java"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSigningTimeout
	}
	return &JarSigner{cfg: cfg, logger: logger.With().Str("component", "jar_signer").Logger()}
}

// Sign escribe certificado y XML en disco, invoca el JAR y devuelve el XML firmado.
func (s *JarSigner) Sign(ctx context.Context, document []byte, accessKey string) ([]byte, error) {
	if len(document) == 0 {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "XML vacío", nil)
	}
	if !pkgsri.IsAccessKey(accessKey) {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "clave de acceso inválida", nil)
	}

	credential, err := LoadCredential(s.cfg.CredentialBase64, s.cfg.CredentialPath)
	if err != nil {
		s.logger.Error().Err(err).Msg("certificado de firma inválido")
		return nil, err
	}

	dir, err := os.MkdirTemp(s.cfg.TempDir, "sri-firma-*")
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "crear directorio temporal", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("dir", dir).Msg("no se pudo limpiar el directorio de firma")
		}
	}()

	p12Path := filepath.Join(dir, "firma.p12")
	inputPath := filepath.Join(dir, accessKey+".xml")
	outputName := accessKey + "_signed.xml"
	outputPath := filepath.Join(dir, outputName)

	if err := writeSynced(p12Path, credential); err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "escribir certificado temporal", err)
	}
	if err := writeSynced(inputPath, document); err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, "escribir XML temporal", err)
	}

	s.logForensics(p12Path, credential)

	args := []string{"-jar", s.cfg.JarPath, p12Path, s.cfg.Password, inputPath, dir, outputName}
	s.logger.Info().Str("clave_acceso", accessKey).
		Strs("cmd", maskArgs(append([]string{s.cfg.JavaBin}, args...), s.cfg.Password)).
		Msg("ejecutando firmador")

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, s.cfg.JavaBin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Si el JVM deja hijos con los pipes abiertos, Wait no debe colgarse.
	cmd.WaitDelay = time.Second

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		s.logger.Error().Dur("elapsed", elapsed).Str("clave_acceso", accessKey).Msg("TIMEOUT_FIRMA: el firmador excedió el tiempo límite")
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningTimeout,
			fmt.Sprintf("el firmador excedió %s", s.cfg.Timeout), runCtx.Err())
	}
	if runErr != nil {
		s.logger.Error().Err(runErr).
			Str("stderr", truncate(stderr.String(), maxLoggedOutput)).
			Str("stdout", truncate(stdout.String(), maxLoggedOutput)).
			Msg("el firmador terminó con error")
		detail := truncate(strings.TrimSpace(stderr.String()), maxLoggedOutput)
		if detail == "" {
			detail = truncate(strings.TrimSpace(stdout.String()), maxLoggedOutput)
		}
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed, detail, runErr)
	}

	signed, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, pkgsri.NewSigningError(pkgsri.ErrSigningProcessFailed,
			"el firmador no generó "+outputName+": "+truncate(stdout.String(), maxLoggedOutput), err)
	}
	s.logger.Debug().Dur("elapsed", elapsed).Int("bytes", len(signed)).Msg("XML firmado")
	return signed, nil
}

func (s *JarSigner) logForensics(path string, credential []byte) {
	fp := FingerprintOf(credential)
	ev := s.logger.Info().
		Str("sha256", fp.SHA256).
		Str("hex_prefix", fp.HexPrefix).
		Int("size", fp.Size)
	if st, err := os.Stat(path); err == nil {
		ev = ev.Int64("size_disk", st.Size())
	}
	ev.Msg("auditoría forense p12")
}

func maskArgs(args []string, secret string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if secret != "" && a == secret {
			out[i] = "***"
			continue
		}
		out[i] = a
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
