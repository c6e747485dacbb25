// Package archive guarda los comprobantes autorizados en almacenamiento S3.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appsri "github.com/jhoicas/cobros-sri/internal/application/sri"
	"github.com/jhoicas/cobros-sri/internal/domain/entity"
)

// DefaultPrefix carpeta raíz de los comprobantes.
const DefaultPrefix = "autorizados"

// ObjectPutter subconjunto de *s3.Client que usa el archivo.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config bucket y endpoint. Endpoint vacío usa AWS; con valor se asume
// un S3 compatible (MinIO) con direccionamiento por ruta.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// S3Archive implementa sri.Archiver.
type S3Archive struct {
	client ObjectPutter
	bucket string
	prefix string
}

var _ appsri.Archiver = (*S3Archive)(nil)

// NewS3Archive carga las credenciales con la cadena por defecto del SDK.
func NewS3Archive(ctx context.Context, cfg Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archivo: bucket requerido")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("archivo: configuración AWS: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ArchiveWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiveWithClient permite inyectar el cliente.
func NewS3ArchiveWithClient(client ObjectPutter, bucket, prefix string) *S3Archive {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &S3Archive{client: client, bucket: bucket, prefix: prefix}
}

// ObjectKey <prefijo>/AAAA/MM/<clave>.xml según la fecha de autorización.
func ObjectKey(prefix string, inv *entity.Invoice) string {
	at := time.Now()
	if inv.AuthorizedAt != nil {
		at = *inv.AuthorizedAt
	}
	return path.Join(prefix, at.Format("2006"), at.Format("01"), inv.AccessKey+".xml")
}

// Archive sube el XML autorizado y devuelve s3://bucket/clave.
func (a *S3Archive) Archive(ctx context.Context, inv *entity.Invoice) (string, error) {
	if inv.AuthorizedDocument == "" || inv.AccessKey == "" {
		return "", fmt.Errorf("archivo: la factura %s no tiene documento autorizado", inv.ID)
	}
	key := ObjectKey(a.prefix, inv)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(inv.AuthorizedDocument)),
		ContentType: aws.String("application/xml"),
		Metadata: map[string]string{
			"invoice-id":           inv.ID,
			"authorization-number": inv.AuthorizationNumber,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archivo: subir %s: %w", key, err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}
