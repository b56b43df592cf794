package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Windi-Fikriyansyah/gudang_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/catalog"
	"github.com/Windi-Fikriyansyah/gudang_be/internal/services/woocommerce"
)

type CatalogHandler struct {
	Sync     *catalog.SyncService
	Search   *catalog.SearchService
	Purchase *catalog.PurchaseService
	Products *catalog.ProductService
	Hub      *realtime.Hub
	Log      *zap.Logger
}

func NewCatalogHandler(
	syncSvc *catalog.SyncService,
	searchSvc *catalog.SearchService,
	purchaseSvc *catalog.PurchaseService,
	productSvc *catalog.ProductService,
	hub *realtime.Hub,
	log *zap.Logger,
) *CatalogHandler {
	return &CatalogHandler{
		Sync:     syncSvc,
		Search:   searchSvc,
		Purchase: purchaseSvc,
		Products: productSvc,
		Hub:      hub,
		Log:      log.Named("handlers.catalog"),
	}
}

func remoteIDParam(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("remoteId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func badRemoteID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": "ID produk tidak valid",
	})
}

// fail maps service errors to the response envelope.
func (h *CatalogHandler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := "Terjadi kesalahan server"

	var serr *woocommerce.StatusError
	switch {
	case errors.Is(err, catalog.ErrItemNotFound):
		status, msg = fiber.StatusNotFound, "Produk tidak ditemukan"
	case errors.Is(err, catalog.ErrInvalidInput):
		status, msg = fiber.StatusBadRequest, "Data produk tidak valid"
	case errors.Is(err, catalog.ErrConflict):
		status, msg = fiber.StatusConflict, "Produk sedang diubah, coba lagi"
	case errors.Is(err, catalog.ErrEmptyUpdate):
		status, msg = fiber.StatusBadRequest, "Tidak ada data yang diubah"
	case errors.Is(err, woocommerce.ErrMissingCredentials):
		status, msg = fiber.StatusServiceUnavailable, "Konfigurasi WooCommerce belum lengkap"
	case errors.Is(err, woocommerce.ErrNotFound):
		status, msg = fiber.StatusNotFound, "Produk tidak ditemukan di WooCommerce"
	case errors.As(err, &serr):
		status, msg = fiber.StatusBadGateway, "WooCommerce menolak permintaan"
	}

	if status >= fiber.StatusInternalServerError {
		h.Log.Error(msg, zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

// ==== LIST / DETAIL ====

func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	f := catalog.ListFilter{
		View:  catalog.ParseView(c.Query("view")),
		Query: c.Query("q"),
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 50),
	}
	if m := strings.TrimSpace(c.Query("missing")); m != "" {
		if v, err := strconv.ParseBool(m); err == nil {
			f.Missing = &v
		}
	}

	list, err := h.Products.List(c.UserContext(), f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    list,
	})
}

func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	id, ok := remoteIDParam(c)
	if !ok {
		return badRemoteID(c)
	}
	item, err := h.Products.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    item,
	})
}

// ==== CREATE / DELETE (admin) ====

func (h *CatalogHandler) CreateProduct(c *fiber.Ctx) error {
	var req catalog.CreateProductInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Body request tidak valid",
		})
	}

	if strings.TrimSpace(req.Name) == "" {
		errs := FieldErrors{}
		errs.Add("name", "Nama produk wajib diisi")
		return validationFail(c, errs)
	}

	item, err := h.Products.Create(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Produk berhasil dibuat",
		"data":    item,
	})
}

func (h *CatalogHandler) DeleteProduct(c *fiber.Ctx) error {
	id, ok := remoteIDParam(c)
	if !ok {
		return badRemoteID(c)
	}
	if err := h.Products.Delete(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Produk berhasil dihapus",
	})
}

// ==== CATATAN LOKAL ====

func (h *CatalogHandler) UpdateNotes(c *fiber.Ctx) error {
	id, ok := remoteIDParam(c)
	if !ok {
		return badRemoteID(c)
	}
	var req catalog.Notes
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Body request tidak valid",
		})
	}

	item, err := h.Products.UpdateNotes(c.UserContext(), id, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Catatan berhasil disimpan",
		"data":    item,
	})
}

// ==== PEMBELIAN ====

func (h *CatalogHandler) TogglePurchase(c *fiber.Ctx) error {
	id, ok := remoteIDParam(c)
	if !ok {
		return badRemoteID(c)
	}

	// body opsional: metadata pembelian
	var data *catalog.PurchaseData
	if len(c.Body()) > 0 {
		data = &catalog.PurchaseData{}
		if err := c.BodyParser(data); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Body request tidak valid",
			})
		}
	}

	item, err := h.Purchase.Toggle(c.UserContext(), id, data)
	if err != nil {
		return h.fail(c, err)
	}

	msg := "Produk ditandai belum dibeli"
	if item.Purchased {
		msg = "Produk ditandai sudah dibeli"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": msg,
		"data":    h.Products.View(*item),
	})
}

func (h *CatalogHandler) UpdatePurchase(c *fiber.Ctx) error {
	id, ok := remoteIDParam(c)
	if !ok {
		return badRemoteID(c)
	}
	var req catalog.PurchaseData
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Body request tidak valid",
		})
	}

	item, err := h.Purchase.UpdatePurchaseData(c.UserContext(), id, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Data pembelian berhasil disimpan",
		"data":    h.Products.View(*item),
	})
}

// ==== SINKRONISASI ====

func (h *CatalogHandler) SyncAll(c *fiber.Ctx) error {
	// sync tetap jalan sampai selesai walau client memutus koneksi
	res := h.Sync.SyncAll(context.WithoutCancel(c.UserContext()))

	if uid, err := uuid.Parse(localString(c, "userId")); err == nil && h.Hub != nil {
		h.Hub.SendToUser(uid, fiber.Map{
			"type":   "sync_finished",
			"result": res,
		})
	}

	return c.JSON(fiber.Map{
		"success": res.Success,
		"message": res.Message,
		"data": fiber.Map{
			"run_id":         res.RunID,
			"synced":         res.Synced,
			"errors":         res.Errors,
			"total":          res.Total,
			"marked_missing": res.MarkedMissing,
			"failed_items":   res.FailedItems(),
		},
	})
}

func (h *CatalogHandler) SyncOne(c *fiber.Ctx) error {
	id, ok := remoteIDParam(c)
	if !ok {
		return badRemoteID(c)
	}

	var parent *int64
	if p := c.Query("parent"); p != "" {
		pid, err := strconv.ParseInt(p, 10, 64)
		if err != nil || pid <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "ID parent tidak valid",
			})
		}
		parent = &pid
	}

	res := h.Sync.SyncOne(context.WithoutCancel(c.UserContext()), id, parent)

	status := fiber.StatusOK
	if res.NotFound {
		status = fiber.StatusNotFound
	}
	body := fiber.Map{
		"success":   res.Success,
		"message":   res.Message,
		"not_found": res.NotFound,
	}
	if res.Item != nil {
		body["data"] = h.Products.View(*res.Item)
	}
	return c.Status(status).JSON(body)
}

func (h *CatalogHandler) SyncRuns(c *fiber.Ctx) error {
	runs, err := h.Sync.Runs(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    runs,
	})
}

// ==== PENCARIAN & KATEGORI (langsung ke WooCommerce) ====

func (h *CatalogHandler) SearchProducts(c *fiber.Ctx) error {
	res := h.Search.Search(c.UserContext(), c.Query("q"), c.QueryInt("page", 1))
	return c.JSON(fiber.Map{
		"success": true,
		"data":    res,
	})
}

func (h *CatalogHandler) Categories(c *fiber.Ctx) error {
	cats, err := h.Products.Categories(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    cats,
	})
}

// ==== WEBSOCKET ====

func (h *CatalogHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// WebSocketHandler streams stale-view events to a signed-in staff member.
func (h *CatalogHandler) WebSocketHandler(c *websocket.Conn) {
	uid, err := uuid.Parse(localStringWS(c, "userId"))
	if err != nil {
		h.Log.Debug("websocket without user", zap.Error(err))
		_ = c.Close()
		return
	}
	realtime.Serve(h.Hub, c, uid, h.Log)
}

func localString(c *fiber.Ctx, key string) string {
	s, _ := c.Locals(key).(string)
	return s
}

func localStringWS(c *websocket.Conn, key string) string {
	s, _ := c.Locals(key).(string)
	return s
}
