package ui

// User-facing texts.
const (
	MsgEmptyQuery      = "Por favor, ingrese un OP para buscar"
	MsgSearching       = "Buscando..."
	MsgFound           = "Se encontraron %d resultado(s)"
	MsgNoResultsFor    = "No se encontraron resultados para el OP: %s"
	MsgConnection      = "Error al conectar con el servidor"
	MsgCopied          = "Enlace copiado al portapapeles"
	MsgCopyFailed      = "Error al copiar el enlace"
	MsgQRUnavailable   = "Librería QR no disponible"
	MsgQRNotDetected   = "No se pudo detectar QR en la imagen"
	MsgQRDetected      = "QR detectado: %s"
	MsgScannerOpening  = "Se abrirá el lector QR. Escanea el código y se cerrará automáticamente."
	MsgNothingToExport = "No hay datos para exportar"
	MsgExported        = "Datos exportados correctamente"
	MsgExportFailed    = "Error al exportar los datos"
	MsgHealthWarning   = "Advertencia: %s"

	NoResultsText   = "No se encontraron resultados"
	OpenActionLabel = "Abrir"
	CopyActionLabel = "Copiar"
)
