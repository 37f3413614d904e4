package handler

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"notary/internal/service"
)

// GetConfig returns the payment settings clients need before paying.
//
// @Summary  Public configuration
// @Tags     notary
// @Produce  json
// @Success  200 {object} model.PublicConfig
// @Router   /config [get]
func GetConfig(svc service.NotaryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cfg, err := svc.Config(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(cfg)
	}
}

// CheckExists reports whether a content hash has been notarized.
//
// @Summary  Check a content hash
// @Tags     notary
// @Produce  json
// @Param    hash path string true "SHA-256 hex, optional 0x prefix"
// @Success  200 {object} map[string]bool
// @Failure  400 {object} errorPayload
// @Router   /api/check/{hash} [get]
func CheckExists(svc service.NotaryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hash, ok := service.NormalizeHash(c.Params("hash"))
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_HASH", "hash must be 64 hex characters")
		}
		exists, err := svc.Exists(c.UserContext(), hash)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"exists": exists})
	}
}

// Notarize records an uploaded document against a payment transaction.
//
// @Summary  Notarize a document
// @Tags     notary
// @Accept   multipart/form-data
// @Produce  json
// @Param    doc           formData file   true "document"
// @Param    walletAddress formData string true "payer address"
// @Param    txHash        formData string true "payment transaction hash"
// @Success  200 {object} model.NotarizeResult
// @Failure  400 {object} errorPayload
// @Failure  402 {object} errorPayload
// @Failure  409 {object} errorPayload
// @Failure  502 {object} errorPayload
// @Failure  503 {object} errorPayload
// @Failure  504 {object} errorPayload
// @Router   /api/notarize [post]
func Notarize(svc service.NotaryService, maxBytes int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, filename, uerr := readUpload(c, maxBytes)
		if uerr != nil {
			return writeError(c, uerr.status, uerr.code, uerr.message)
		}

		res, err := svc.Notarize(c.UserContext(), service.NotarizeInput{
			File:       data,
			Filename:   filename,
			Payer:      c.FormValue("walletAddress"),
			PaymentRef: c.FormValue("txHash"),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// Verify looks a document up by content.
//
// @Summary  Verify a document
// @Tags     notary
// @Accept   multipart/form-data
// @Produce  json
// @Param    doc formData file true "document"
// @Success  200 {object} model.VerifyResult
// @Failure  400 {object} errorPayload
// @Router   /api/verify [post]
func Verify(svc service.NotaryService, maxBytes int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, _, uerr := readUpload(c, maxBytes)
		if uerr != nil {
			return writeError(c, uerr.status, uerr.code, uerr.message)
		}

		res, err := svc.Verify(c.UserContext(), data)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

type uploadError struct {
	status  int
	code    string
	message string
}

// readUpload reads the "doc" multipart field.
func readUpload(c *fiber.Ctx, maxBytes int64) ([]byte, string, *uploadError) {
	fh, err := c.FormFile("doc")
	if err != nil {
		return nil, "", &uploadError{fiber.StatusBadRequest, "FILE_REQUIRED", "no file"}
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, "", &uploadError{fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds upload limit"}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, "", &uploadError{fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file"}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", &uploadError{fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot read uploaded file"}
	}
	return data, fh.Filename, nil
}
