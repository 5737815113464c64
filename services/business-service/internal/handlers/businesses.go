package handlers

import (
	"net/http"
	"strings"

	"github.com/bookly-app/bookly/libs/httpx"
	"github.com/bookly-app/bookly/libs/outbox"
	"github.com/bookly-app/bookly/libs/pagination"
	"github.com/bookly-app/bookly/services/business-service/internal/model"
	"github.com/bookly-app/bookly/services/business-service/internal/validation"
)

const defaultPriceLevel = 2

type businessForm struct {
	Name          string `json:"name" validate:"required,min=2"`
	Description   string `json:"description" validate:"required,min=10"`
	IndustryID    string `json:"industry_id" validate:"required,uuid"`
	Address       string `json:"address" validate:"required,min=5"`
	City          string `json:"city" validate:"required,min=2"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country" validate:"required,min=2"`
	Phone         string `json:"phone" validate:"required,min=10"`
	Email         string `json:"email" validate:"required,email"`
	Website       string `json:"website" validate:"omitempty,url"`
	LogoURL       string `json:"logo_url" validate:"omitempty,url"`
	CoverImageURL string `json:"cover_image_url" validate:"omitempty,url"`
	PriceLevel    int    `json:"price_level" validate:"min=1,max=4"`
}

func (f *businessForm) normalize() {
	for _, p := range []*string{&f.Name, &f.Description, &f.IndustryID, &f.Address, &f.City, &f.State,
		&f.PostalCode, &f.Country, &f.Phone, &f.Email, &f.Website, &f.LogoURL, &f.CoverImageURL} {
		*p = strings.TrimSpace(*p)
	}
	if f.PriceLevel == 0 {
		f.PriceLevel = defaultPriceLevel
	}
}

type businessPatchForm struct {
	Name          *string `json:"name" validate:"omitempty,min=2"`
	Description   *string `json:"description" validate:"omitempty,min=10"`
	IndustryID    *string `json:"industry_id" validate:"omitempty,uuid"`
	Address       *string `json:"address" validate:"omitempty,min=5"`
	City          *string `json:"city" validate:"omitempty,min=2"`
	State         *string `json:"state"`
	PostalCode    *string `json:"postal_code"`
	Country       *string `json:"country" validate:"omitempty,min=2"`
	Phone         *string `json:"phone" validate:"omitempty,min=10"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Website       *string `json:"website" validate:"omitempty,url"`
	LogoURL       *string `json:"logo_url" validate:"omitempty,url"`
	CoverImageURL *string `json:"cover_image_url" validate:"omitempty,url"`
	PriceLevel    *int    `json:"price_level" validate:"omitempty,min=1,max=4"`
}

func (f *businessPatchForm) normalize() {
	for _, p := range []**string{&f.Name, &f.Description, &f.IndustryID, &f.Address, &f.City, &f.State,
		&f.PostalCode, &f.Country, &f.Phone, &f.Email, &f.Website, &f.LogoURL, &f.CoverImageURL} {
		*p = trimPtr(*p)
	}
}

func (f businessPatchForm) patch() model.BusinessPatch {
	return model.BusinessPatch{
		Name:          f.Name,
		Description:   f.Description,
		IndustryID:    f.IndustryID,
		Address:       f.Address,
		City:          f.City,
		State:         f.State,
		PostalCode:    f.PostalCode,
		Country:       f.Country,
		Phone:         f.Phone,
		Email:         f.Email,
		Website:       f.Website,
		LogoURL:       f.LogoURL,
		CoverImageURL: f.CoverImageURL,
		PriceLevel:    f.PriceLevel,
	}
}

// Create onboards a business for the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var form businessForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	form.normalize()
	if err := validation.Struct(form); err != nil {
		if !writeValidation(w, err) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid form")
		}
		return
	}

	b := model.Business{
		OwnerID:       userID,
		IndustryID:    form.IndustryID,
		Name:          form.Name,
		Description:   form.Description,
		Address:       form.Address,
		City:          form.City,
		State:         form.State,
		PostalCode:    form.PostalCode,
		Country:       form.Country,
		Phone:         form.Phone,
		Email:         form.Email,
		Website:       form.Website,
		LogoURL:       form.LogoURL,
		CoverImageURL: form.CoverImageURL,
		PriceLevel:    form.PriceLevel,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.CreateBusiness(ctx, tx, &b); err != nil {
		h.writeStorageError(w, err, "industry not found", "create business")
		return
	}
	if err := h.repo.MarkBusinessOwner(ctx, tx, userID); err != nil {
		h.writeStorageError(w, err, "user not found", "mark business owner")
		return
	}
	evt, err := outbox.NewEvent("business", b.ID, outbox.BusinessCreated, map[string]any{
		"business_id": b.ID,
		"owner_id":    userID,
		"name":        b.Name,
		"slug":        b.Slug,
		"industry_id": b.IndustryID,
		"email":       b.Email,
	})
	if err == nil {
		err = h.outboxRepo.Insert(ctx, tx, evt)
	}
	if err != nil {
		h.logger.Error("outbox insert failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "failed to write outbox event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to commit")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toBusinessResponse(b))
}

// Get returns a business by id or slug together with its active services
// and weekly hours.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.PathValue("ref"))
	b, err := h.repo.GetBusiness(r.Context(), ref)
	if err != nil {
		h.writeStorageError(w, err, "business not found", "get business")
		return
	}
	out := toBusinessResponse(b)

	services, err := h.repo.ListServices(r.Context(), b.ID, true)
	if err != nil {
		h.writeStorageError(w, err, "business not found", "list services")
		return
	}
	for _, s := range services {
		out.Services = append(out.Services, toServiceResponse(s))
	}
	hours, err := h.repo.GetHours(r.Context(), b.ID)
	if err != nil {
		h.writeStorageError(w, err, "business not found", "get hours")
		return
	}
	for _, hr := range hours {
		out.Hours = append(out.Hours, toHoursPayload(hr))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// Search lists active businesses matching the query filters.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := pagination.FromQuery(q)
	list, total, err := h.repo.SearchBusinesses(r.Context(), model.SearchFilter{
		Industry: strings.TrimSpace(q.Get("industry")),
		Location: strings.TrimSpace(q.Get("location")),
		Search:   strings.TrimSpace(q.Get("search")),
		Limit:    page.Limit,
		Offset:   page.Offset(),
	})
	if err != nil {
		h.writeStorageError(w, err, "business not found", "search businesses")
		return
	}
	items := make([]businessResponse, 0, len(list))
	for _, b := range list {
		items = append(items, toBusinessResponse(b))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"businesses": items,
		"pagination": pagination.Build(page, total),
	})
}

// Update edits the caller's business. Only the fields present in the body
// change.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := httpx.RequireUser(w, r)
	if !ok {
		return
	}
	var form businessPatchForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	form.normalize()
	if err := validation.Struct(form); err != nil {
		if !writeValidation(w, err) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid form")
		}
		return
	}

	b, err := h.repo.UpdateBusiness(r.Context(), strings.TrimSpace(r.PathValue("ref")), userID, form.patch())
	if err != nil {
		h.writeStorageError(w, err, "business not found", "update business")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBusinessResponse(b))
}

func (h *Handler) ListIndustries(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListIndustries(r.Context())
	if err != nil {
		h.writeStorageError(w, err, "industry not found", "list industries")
		return
	}
	items := make([]industryResponse, 0, len(list))
	for _, i := range list {
		items = append(items, industryResponse{ID: i.ID, Name: i.Name, Slug: i.Slug, Description: i.Description})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}
