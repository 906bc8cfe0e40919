package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"tour_id",
			"user_id",
			"guide_id",
			"booking_date",
			"booking_time",
			"total_amount",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"tour_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"guide_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"booking_date": bson.M{
				"bsonType": "date",
			},

			"booking_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01][0-9]|2[0-3]):[0-5][0-9]$`,
			},

			"total_amount": bson.M{
				"bsonType":         "double",
				"exclusiveMinimum": true,
				"minimum":          0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"PENDING",
					"CONFIRMED",
					"COMPLETED",
					"CANCELLED",
					"FAILED",
				},
			},

			"payment": bson.M{
				"bsonType": "object",
				"required": []string{"status", "transaction_id", "amount"},
				"properties": bson.M{
					"status": bson.M{
						"bsonType": "string",
						"enum": []string{
							"UNPAID",
							"PAID",
							"CANCELLED",
							"FAILED",
							"REFUNDED",
						},
					},
					"transaction_id": bson.M{
						"bsonType": "string",
					},
					"amount": bson.M{
						"bsonType":         "double",
						"exclusiveMinimum": true,
						"minimum":          0,
					},
					"initiated_at": bson.M{
						"bsonType": "date",
					},
					"resolved_at": bson.M{
						"bsonType": "date",
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
