package formats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sagecrypto "github.com/sage-x-project/securemsg/crypto"
	"github.com/sage-x-project/securemsg/crypto/formats"
	"github.com/sage-x-project/securemsg/crypto/keys"
)

func TestPEMExportImportECDH(t *testing.T) {
	kp, err := keys.GenerateECDHKeyPair()
	require.NoError(t, err)

	exporter := formats.NewPEMExporter()
	data, err := exporter.Export(kp, sagecrypto.KeyFormatPEM)
	require.NoError(t, err)

	importer := formats.NewPEMImporter()
	imported, err := importer.Import(data, sagecrypto.KeyFormatPEM)
	require.NoError(t, err)
	assert.Equal(t, sagecrypto.KeyTypeECDH, imported.Type())
}

func TestPEMExportPublicSigning(t *testing.T) {
	kp, err := keys.GenerateSigningKeyPair()
	require.NoError(t, err)

	exporter := formats.NewPEMExporter()
	data, err := exporter.ExportPublic(kp, sagecrypto.KeyFormatPEM)
	require.NoError(t, err)

	importer := formats.NewPEMImporter()
	pub, err := importer.ImportPublic(data, sagecrypto.KeyFormatPEM)
	require.NoError(t, err)
	assert.NotNil(t, pub)
}
