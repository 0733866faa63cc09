package order_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-registration/internal/errs"
	"ms-registration/internal/models"
)

func TestValidationReportsAllInvalidFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateManualOrder(models.CreateOrderRequest{
		Currency: "INR",
		Customer: models.CustomerDetails{
			FullName: "X",
			Email:    "not-an-email",
			Phone:    "12345",
		},
	})

	require.Error(t, err)
	var validationErr *errs.ValidationError
	require.True(t, errors.As(err, &validationErr))

	assert.Contains(t, validationErr.Fields, "full_name")
	assert.Contains(t, validationErr.Fields, "email")
	assert.Contains(t, validationErr.Fields, "phone")
	assert.Contains(t, validationErr.Fields, "speciality")
	assert.Contains(t, validationErr.Fields, "hospital")
	assert.Contains(t, validationErr.Fields, "city")
}

func TestValidationAcceptsPrefixedIndianMobiles(t *testing.T) {
	f := newFixture(t)

	for _, phone := range []string{"9876543210", "+919876543210", "919876543210", "09876543210", "98765 43210"} {
		customer := validCustomer()
		customer.Phone = phone

		f.db.ExpectedCalls = nil
		f.notifier.ExpectedCalls = nil
		f.db.On("CreateOrder", mock.Anything).Return(nil)
		f.notifier.On("OrderCreated", mock.Anything, mock.Anything).Return()

		_, err := f.svc.CreateManualOrder(models.CreateOrderRequest{
			Currency: "INR",
			Customer: customer,
		})
		assert.NoError(t, err, "phone %q should be accepted", phone)
	}
}

func TestValidationRejectsBadMobiles(t *testing.T) {
	f := newFixture(t)

	for _, phone := range []string{"12345", "5876543210", "98765432101", "987654321", "abcdefghij"} {
		customer := validCustomer()
		customer.Phone = phone

		_, err := f.svc.CreateManualOrder(models.CreateOrderRequest{
			Currency: "INR",
			Customer: customer,
		})

		var validationErr *errs.ValidationError
		require.Truef(t, errors.As(err, &validationErr), "phone %q should be rejected", phone)
		assert.Contains(t, validationErr.Fields, "phone")
	}
}

func TestValidationRejectsUnsupportedCurrency(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateManualOrder(models.CreateOrderRequest{
		Currency: "EUR",
		Customer: validCustomer(),
	})

	var validationErr *errs.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Contains(t, validationErr.Fields, "currency")
}

func TestValidationCanonicalizesCurrencyCasing(t *testing.T) {
	f := newFixture(t)

	// The gateway requires uppercase ISO codes, so the allow-list casing is
	// what must be persisted and returned
	f.db.On("CreateOrder", mock.MatchedBy(func(o models.Order) bool {
		return o.Currency == "INR"
	})).Return(nil)
	f.notifier.On("OrderCreated", mock.Anything, mock.Anything).Return()

	resp, err := f.svc.CreateManualOrder(models.CreateOrderRequest{
		Currency: "inr",
		Customer: validCustomer(),
	})

	require.NoError(t, err)
	assert.Equal(t, "INR", resp.Currency)
	f.db.AssertExpectations(t)
}
