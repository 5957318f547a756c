package app

import (
	"fmt"

	prescriptionHTTP "github.com/splitrx/splitrx/internal/prescription/http"
	prescriptionRepository "github.com/splitrx/splitrx/internal/prescription/repository"
	prescriptionUsecase "github.com/splitrx/splitrx/internal/prescription/usecase"
)

// PrescriptionRepository returns the prescription repository instance.
func (c *Container) PrescriptionRepository() (prescriptionUsecase.PrescriptionRepository, error) {
	var err error
	c.prescriptionRepoInit.Do(func() {
		c.prescriptionRepo, err = c.initPrescriptionRepository()
		if err != nil {
			c.initErrors["prescriptionRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["prescriptionRepo"]; exists {
		return nil, storedErr
	}
	return c.prescriptionRepo, nil
}

// PrescriptionUseCase returns the prescription use case instance.
func (c *Container) PrescriptionUseCase() (prescriptionUsecase.UseCase, error) {
	var err error
	c.prescriptionUseCaseInit.Do(func() {
		c.prescriptionUseCase, err = c.initPrescriptionUseCase()
		if err != nil {
			c.initErrors["prescriptionUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["prescriptionUseCase"]; exists {
		return nil, storedErr
	}
	return c.prescriptionUseCase, nil
}

// PrescriptionHandler returns the HTTP handler for prescription operations.
func (c *Container) PrescriptionHandler() (*prescriptionHTTP.PrescriptionHandler, error) {
	var err error
	c.prescriptionHandlerInit.Do(func() {
		c.prescriptionHandler, err = c.initPrescriptionHandler()
		if err != nil {
			c.initErrors["prescriptionHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["prescriptionHandler"]; exists {
		return nil, storedErr
	}
	return c.prescriptionHandler, nil
}

// initPrescriptionRepository creates the prescription repository instance.
func (c *Container) initPrescriptionRepository() (prescriptionUsecase.PrescriptionRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for prescription repository: %w", err)
	}
	return prescriptionRepository.NewPostgreSQLPrescriptionRepository(db), nil
}

// initPrescriptionUseCase creates the prescription use case with all its dependencies.
func (c *Container) initPrescriptionUseCase() (prescriptionUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for prescription use case: %w", err)
	}

	prescriptionRepo, err := c.PrescriptionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get prescription repository for prescription use case: %w", err)
	}

	consentRepo, err := c.ConsentRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get consent repository for prescription use case: %w", err)
	}

	userUseCase, err := c.UserUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get user use case for prescription use case: %w", err)
	}

	ledgerUseCase, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for prescription use case: %w", err)
	}

	cipher, err := c.Cipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get cipher for prescription use case: %w", err)
	}

	baseUseCase := prescriptionUsecase.NewPrescriptionUseCase(
		txManager,
		prescriptionRepo,
		consentRepo,
		userUseCase,
		ledgerUseCase,
		cipher,
		c.Signer(),
		c.config.PrescriptionMaxExpiryDays,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for prescription use case: %w", err)
		}
		return prescriptionUsecase.NewUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initPrescriptionHandler creates the prescription HTTP handler with all its dependencies.
func (c *Container) initPrescriptionHandler() (*prescriptionHTTP.PrescriptionHandler, error) {
	prescriptionUseCase, err := c.PrescriptionUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get prescription use case for prescription handler: %w", err)
	}

	return prescriptionHTTP.NewPrescriptionHandler(prescriptionUseCase, c.Logger()), nil
}
