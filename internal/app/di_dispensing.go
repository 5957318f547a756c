package app

import (
	"fmt"

	dispensingHTTP "github.com/splitrx/splitrx/internal/dispensing/http"
	dispensingRepository "github.com/splitrx/splitrx/internal/dispensing/repository"
	dispensingUsecase "github.com/splitrx/splitrx/internal/dispensing/usecase"
)

// DispensingRepository returns the dispensing record repository instance.
func (c *Container) DispensingRepository() (dispensingUsecase.DispensingRepository, error) {
	var err error
	c.dispensingRepoInit.Do(func() {
		c.dispensingRepo, err = c.initDispensingRepository()
		if err != nil {
			c.initErrors["dispensingRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispensingRepo"]; exists {
		return nil, storedErr
	}
	return c.dispensingRepo, nil
}

// DispensingUseCase returns the dispensing use case instance.
func (c *Container) DispensingUseCase() (dispensingUsecase.UseCase, error) {
	var err error
	c.dispensingUseCaseInit.Do(func() {
		c.dispensingUseCase, err = c.initDispensingUseCase()
		if err != nil {
			c.initErrors["dispensingUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispensingUseCase"]; exists {
		return nil, storedErr
	}
	return c.dispensingUseCase, nil
}

// DispensingHandler returns the HTTP handler for verification and dispensing.
func (c *Container) DispensingHandler() (*dispensingHTTP.DispensingHandler, error) {
	var err error
	c.dispensingHandlerInit.Do(func() {
		c.dispensingHandler, err = c.initDispensingHandler()
		if err != nil {
			c.initErrors["dispensingHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dispensingHandler"]; exists {
		return nil, storedErr
	}
	return c.dispensingHandler, nil
}

// initDispensingRepository creates the dispensing record repository instance.
func (c *Container) initDispensingRepository() (dispensingUsecase.DispensingRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for dispensing repository: %w", err)
	}
	return dispensingRepository.NewPostgreSQLDispensingRepository(db), nil
}

// initDispensingUseCase creates the dispensing use case with all its dependencies.
func (c *Container) initDispensingUseCase() (dispensingUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for dispensing use case: %w", err)
	}

	dispensingRepo, err := c.DispensingRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispensing repository for dispensing use case: %w", err)
	}

	prescriptionRepo, err := c.PrescriptionRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get prescription repository for dispensing use case: %w", err)
	}

	userUseCase, err := c.UserUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get user use case for dispensing use case: %w", err)
	}

	ledgerUseCase, err := c.LedgerUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger use case for dispensing use case: %w", err)
	}

	cipher, err := c.Cipher()
	if err != nil {
		return nil, fmt.Errorf("failed to get cipher for dispensing use case: %w", err)
	}

	baseUseCase := dispensingUsecase.NewDispensingUseCase(
		txManager,
		dispensingRepo,
		prescriptionRepo,
		userUseCase,
		ledgerUseCase,
		cipher,
		c.Signer(),
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for dispensing use case: %w", err)
		}
		return dispensingUsecase.NewUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initDispensingHandler creates the dispensing HTTP handler with all its dependencies.
func (c *Container) initDispensingHandler() (*dispensingHTTP.DispensingHandler, error) {
	dispensingUseCase, err := c.DispensingUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get dispensing use case for dispensing handler: %w", err)
	}

	return dispensingHTTP.NewDispensingHandler(dispensingUseCase, c.Logger()), nil
}
