package payment

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"shopbd-be/internal/config"
	"shopbd-be/internal/order"
)

const (
	currencyBDT     = "BDT"
	customerCountry = "Bangladesh"
	shippingMethod  = "NO"
	productName     = "Products from our store"
	productCategory = "General"
	productProfile  = "general"
)

// PaymentRequestKeys are the form fields of an initiation request.
var PaymentRequestKeys = []string{
	"store_id", "store_passwd", "total_amount", "currency", "tran_id",
	"success_url", "fail_url", "cancel_url", "ipn_url",
	"cus_name", "cus_email", "cus_add1", "cus_city", "cus_postcode", "cus_country",
	"shipping_method", "product_name", "product_category", "product_profile",
}

// CallbackURLs are the routes the gateway sends the buyer (or the IPN) back to.
type CallbackURLs struct {
	Success string
	Fail    string
	Cancel  string
	Notify  string
}

func NewCallbackURLs(baseURL string, orderID uint) CallbackURLs {
	base := strings.TrimRight(baseURL, "/")
	route := func(kind string) string {
		return fmt.Sprintf("%s/payment/%s/%d/", base, kind, orderID)
	}

	return CallbackURLs{
		Success: route("success"),
		Fail:    route("fail"),
		Cancel:  route("cancel"),
		Notify:  route("notify"),
	}
}

// BuildPaymentRequest assembles the initiation form for an order.
func BuildPaymentRequest(cfg config.SSLCommerzConfig, baseURL string, o *order.Order) url.Values {
	urls := NewCallbackURLs(baseURL, o.ID)

	form := url.Values{}
	form.Set("store_id", cfg.StoreID)
	form.Set("store_passwd", cfg.StorePassword)
	form.Set("total_amount", strconv.FormatFloat(o.TotalCost(), 'f', 2, 64))
	form.Set("currency", currencyBDT)
	form.Set("tran_id", strconv.FormatUint(uint64(o.ID), 10))
	form.Set("success_url", urls.Success)
	form.Set("fail_url", urls.Fail)
	form.Set("cancel_url", urls.Cancel)
	form.Set("ipn_url", urls.Notify)
	form.Set("cus_name", o.FullName())
	form.Set("cus_email", o.Email)
	form.Set("cus_add1", o.Address)
	form.Set("cus_city", o.City)
	form.Set("cus_postcode", o.PostalCode)
	form.Set("cus_country", customerCountry)
	form.Set("shipping_method", shippingMethod)
	form.Set("product_name", productName)
	form.Set("product_category", productCategory)
	form.Set("product_profile", productProfile)

	return form
}

// BaseURL returns the origin (scheme://host) the request was addressed to,
// honouring reverse proxy headers.
func BaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(r, "X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(proto)
	}

	host := r.Host
	if fwd := firstHeaderValue(r, "X-Forwarded-Host"); fwd != "" {
		host = fwd
	}

	return scheme + "://" + host
}

func firstHeaderValue(r *http.Request, key string) string {
	v := r.Header.Get(key)
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
