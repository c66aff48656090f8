package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	maxQRURLLength = 2048
	defaultQRSize  = 256
	maxQRSize      = 1024
)

// handleShareQR renders a PNG QR code for a results link, so a phone can
// pick up an analysis straight from the results page.
func handleShareQR(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if len(url) > maxQRURLLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url too long"})
		return
	}

	size := intQuery(c, "size", defaultQRSize)
	if size > maxQRSize {
		size = maxQRSize
	}

	png, err := qrcode.Encode(url, qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
